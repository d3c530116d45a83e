package app

import (
	"context"
	"runtime"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"goveg/adapters/centrality"
	"goveg/domain/core"
	"goveg/domain/raster"
	"goveg/domain/series"
)

// MetricConfig carries the tiling and scoring knobs
type MetricConfig struct {
	TileRows        int
	TileCols        int
	Threshold       float64
	ComputeOffset50 bool
	TileWorkers     int
}

// Validate checks the knobs before any image is processed
func (c MetricConfig) Validate() error {
	if c.TileRows <= 0 || c.TileCols <= 0 {
		return core.NewConfigError("tile_shape", "tile rows and cols must be positive")
	}
	return nil
}

// MetricService turns one acquisition image into per-tile records and
// their per-date reduction.
type MetricService struct {
	cfg MetricConfig
}

// NewMetricService creates a metric service
func NewMetricService(cfg MetricConfig) (*MetricService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TileWorkers <= 0 {
		cfg.TileWorkers = runtime.NumCPU()
	}
	return &MetricService{cfg: cfg}, nil
}

// ComputeDateMetrics tiles the image, scores every tile in parallel, and
// reduces the valid tiles to a DateRecord. Tiles with no valid pixels are
// excluded from the reduction; a date where every tile is invalid fails
// with a data-quality error. Tile records come back in row-major tile
// order regardless of completion order.
func (s *MetricService) ComputeDateMetrics(ctx context.Context, date core.Date, im *raster.Image) (series.DateRecord, []series.SubImageRecord, error) {
	tiles, err := raster.Tile(im, s.cfg.TileRows, s.cfg.TileCols)
	if err != nil {
		return series.DateRecord{}, nil, err
	}

	type tileScore struct {
		rec   series.SubImageRecord
		valid bool
	}
	scores := make([]tileScore, len(tiles))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.TileWorkers)
	for i := range tiles {
		g.Go(func() error {
			tile := tiles[i]
			valid := tile.ValidValues()
			if len(valid) == 0 {
				return nil
			}

			meanIntensity, err := stats.Mean(valid)
			if err != nil {
				return err
			}

			mask := raster.Binarize(tile, s.cfg.Threshold)
			m := centrality.Compute(mask, centrality.Options{ComputeOffset50: s.cfg.ComputeOffset50})

			scores[i] = tileScore{
				rec: series.SubImageRecord{
					Date:              date,
					TileIndex:         tile.Index,
					TileRow:           tile.Row,
					TileCol:           tile.Col,
					MeanIntensity:     meanIntensity,
					Centrality:        m.Centrality,
					Offset50:          m.Offset50,
					VegetatedFraction: m.VegetatedFraction,
				},
				valid: true,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return series.DateRecord{}, nil, err
	}

	records := make([]series.SubImageRecord, 0, len(scores))
	centralities := make([]float64, 0, len(scores))
	offsets := make([]float64, 0, len(scores))
	intensities := make([]float64, 0, len(scores))
	for _, score := range scores {
		if !score.valid {
			continue
		}
		records = append(records, score.rec)
		centralities = append(centralities, score.rec.Centrality)
		offsets = append(offsets, score.rec.Offset50)
		intensities = append(intensities, score.rec.MeanIntensity)
	}

	if len(records) == 0 {
		return series.DateRecord{}, nil, core.NewDataQualityError(date, "no valid pixels in any tile")
	}

	record := series.DateRecord{
		Date:       date,
		ValidTiles: len(records),
		TotalTiles: len(tiles),
	}
	if record.MeanCentrality, record.StdCentrality, err = reduce(centralities); err != nil {
		return series.DateRecord{}, nil, err
	}
	if record.MeanOffset50, record.StdOffset50, err = reduce(offsets); err != nil {
		return series.DateRecord{}, nil, err
	}
	if record.MeanIntensity, record.StdIntensity, err = reduce(intensities); err != nil {
		return series.DateRecord{}, nil, err
	}

	return record, records, nil
}

// reduce computes the mean and sample standard deviation across tiles. A
// single tile reports zero spread.
func reduce(values []float64) (float64, float64, error) {
	mean, err := stats.Mean(values)
	if err != nil {
		return 0, 0, err
	}
	if len(values) < 2 {
		return mean, 0, nil
	}
	std, err := stats.StandardDeviationSample(values)
	if err != nil {
		return 0, 0, err
	}
	return mean, std, nil
}
