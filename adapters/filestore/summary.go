package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"goveg/domain/core"
	"goveg/domain/series"
	"goveg/internal/log"
)

// Results-summary format: top-level collections keyed by name, each with a
// type and a "time-series-data" map keyed by date. Vegetation dates map
// sub-image keys to space points; weather dates map metric names to
// scalars. The shape matches the upstream download archives, so summaries
// produced elsewhere can be analyzed directly.
const (
	collectionTypeVegetation = "vegetation"

	// Collection and metric names used when writing our own summaries
	vegetationCollection = "COPERNICUS/S2"
	weatherCollection    = "ECMWF/ERA5/MONTHLY"
	precipitationMetric  = "total_precipitation"
	temperatureMetric    = "mean_2m_air_temperature"
)

type summaryCollection struct {
	Type           string                     `json:"type"`
	TimeSeriesData map[string]json.RawMessage `json:"time-series-data"`
}

type spacePoint struct {
	Date          string   `json:"date"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	Offset50      float64  `json:"offset50"`
	Centrality    *float64 `json:"centrality,omitempty"`
	MeanIntensity *float64 `json:"mean_intensity,omitempty"`
}

// ReadResultsSummary loads a results-summary file and collapses the
// per-sub-image values of each date into mean/std series. Weather
// collections are merged in by date. Dates with no data are dropped.
func ReadResultsSummary(path string, site core.SiteID) (*series.MultiSeries, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results summary: %w", err)
	}

	var collections map[string]summaryCollection
	if err := json.Unmarshal(raw, &collections); err != nil {
		return nil, fmt.Errorf("failed to decode results summary %s: %w", path, err)
	}

	vegetation := pickVegetationCollection(collections)
	if vegetation == "" {
		return nil, core.NewDataQualityError(core.Date{}, "results summary has no vegetation collection")
	}

	builder := series.NewBuilder(site)
	if err := reduceVegetation(builder, collections[vegetation]); err != nil {
		return nil, err
	}
	for name, coll := range collections {
		if coll.Type == collectionTypeVegetation {
			continue
		}
		if err := mergeWeather(builder, coll); err != nil {
			return nil, fmt.Errorf("collection %s: %w", name, err)
		}
	}

	multi, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build series from summary: %w", err)
	}
	log.Infof("[ResultsSummary] %s loaded (%d dates, collection %s)",
		filepath.Base(path), multi.Len(), vegetation)
	return multi, nil
}

// pickVegetationCollection returns the name of the vegetation collection
// the series is built from. Multiple vegetation collections keep the first
// in name order, matching how mixed archives are usually dominated by one
// sensor.
func pickVegetationCollection(collections map[string]summaryCollection) string {
	var names []string
	for name, coll := range collections {
		if coll.Type == collectionTypeVegetation {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	if len(names) > 1 {
		log.Warnf("[ResultsSummary] %d vegetation collections found, using %s", len(names), names[0])
	}
	return names[0]
}

func reduceVegetation(builder *series.Builder, coll summaryCollection) error {
	for dateKey, rawPoints := range coll.TimeSeriesData {
		if isNullOrEmpty(rawPoints) {
			continue
		}
		date, err := core.ParseDate(dateKey)
		if err != nil {
			return fmt.Errorf("vegetation date %q: %w", dateKey, err)
		}

		var points map[string]spacePoint
		if err := json.Unmarshal(rawPoints, &points); err != nil {
			return fmt.Errorf("vegetation date %s: %w", dateKey, err)
		}
		if len(points) == 0 {
			continue
		}

		record, err := reduceSpacePoints(date, points)
		if err != nil {
			return err
		}
		if err := builder.AddRecord(record); err != nil {
			return fmt.Errorf("results summary: %w", err)
		}
	}
	return nil
}

// reduceSpacePoints collapses one date's sub-image values into a date
// record. Centrality and intensity columns are filled only when every
// space point carries them; upstream summaries hold offset50 alone.
func reduceSpacePoints(date core.Date, points map[string]spacePoint) (series.DateRecord, error) {
	offsets := make([]float64, 0, len(points))
	centralities := make([]float64, 0, len(points))
	intensities := make([]float64, 0, len(points))
	for _, p := range points {
		offsets = append(offsets, p.Offset50)
		if p.Centrality != nil {
			centralities = append(centralities, *p.Centrality)
		}
		if p.MeanIntensity != nil {
			intensities = append(intensities, *p.MeanIntensity)
		}
	}

	record := series.DateRecord{
		Date:       date,
		ValidTiles: len(points),
		TotalTiles: len(points),
	}
	var err error
	if record.MeanOffset50, record.StdOffset50, err = meanStd(offsets); err != nil {
		return series.DateRecord{}, fmt.Errorf("date %s offset50: %w", date, err)
	}
	if len(centralities) == len(points) {
		if record.MeanCentrality, record.StdCentrality, err = meanStd(centralities); err != nil {
			return series.DateRecord{}, fmt.Errorf("date %s centrality: %w", date, err)
		}
	}
	if len(intensities) == len(points) {
		if record.MeanIntensity, record.StdIntensity, err = meanStd(intensities); err != nil {
			return series.DateRecord{}, fmt.Errorf("date %s intensity: %w", date, err)
		}
	}
	return record, nil
}

func mergeWeather(builder *series.Builder, coll summaryCollection) error {
	for dateKey, rawValues := range coll.TimeSeriesData {
		if isNullOrEmpty(rawValues) {
			continue
		}
		date, err := core.ParseDate(dateKey)
		if err != nil {
			return fmt.Errorf("weather date %q: %w", dateKey, err)
		}

		var values map[string]float64
		if err := json.Unmarshal(rawValues, &values); err != nil {
			return fmt.Errorf("weather date %s: %w", dateKey, err)
		}

		var climate series.Climate
		havePrecipitation, haveTemperature := false, false
		for metric, value := range values {
			name := strings.ToLower(metric)
			switch {
			case strings.Contains(name, "precipitation"):
				climate.Precipitation = value
				havePrecipitation = true
			case strings.Contains(name, "temperature"):
				climate.Temperature = value
				haveTemperature = true
			}
		}
		if havePrecipitation && haveTemperature {
			builder.SetClimate(date, climate)
		}
	}
	return nil
}

func isNullOrEmpty(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null" || trimmed == "{}"
}

func meanStd(values []float64) (float64, float64, error) {
	if len(values) == 0 {
		return 0, 0, nil
	}
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

// WriteResultsSummary writes a survey back out in the results-summary
// shape. Tile records become space points keyed by tile index, with the
// tile grid position standing in for geolocation; without them each date
// collapses to a single point carrying the date means, and the stds are
// not recoverable on re-read.
func WriteResultsSummary(path string, multi *series.MultiSeries, tiles []series.SubImageRecord) error {
	tilesByDate := make(map[string][]series.SubImageRecord)
	for _, tile := range tiles {
		key := tile.Date.String()
		tilesByDate[key] = append(tilesByDate[key], tile)
	}

	vegetation := summaryCollection{
		Type:           collectionTypeVegetation,
		TimeSeriesData: make(map[string]json.RawMessage, multi.Len()),
	}
	weather := summaryCollection{
		Type:           "weather",
		TimeSeriesData: make(map[string]json.RawMessage, multi.Len()),
	}

	for _, record := range multi.Records {
		key := record.Date.String()
		points := make(map[string]spacePoint)
		if dateTiles := tilesByDate[key]; len(dateTiles) > 0 {
			for _, tile := range dateTiles {
				centrality := tile.Centrality
				intensity := tile.MeanIntensity
				points[fmt.Sprintf("%d", tile.TileIndex)] = spacePoint{
					Date:          key,
					Latitude:      float64(tile.TileRow),
					Longitude:     float64(tile.TileCol),
					Offset50:      tile.Offset50,
					Centrality:    &centrality,
					MeanIntensity: &intensity,
				}
			}
		} else {
			centrality := record.MeanCentrality
			intensity := record.MeanIntensity
			points["0"] = spacePoint{
				Date:          key,
				Offset50:      record.MeanOffset50,
				Centrality:    &centrality,
				MeanIntensity: &intensity,
			}
		}
		raw, err := json.Marshal(points)
		if err != nil {
			return fmt.Errorf("failed to encode vegetation date %s: %w", key, err)
		}
		vegetation.TimeSeriesData[key] = raw

		if record.Precipitation != nil && record.Temperature != nil {
			raw, err := json.Marshal(map[string]float64{
				precipitationMetric: *record.Precipitation,
				temperatureMetric:   *record.Temperature,
			})
			if err != nil {
				return fmt.Errorf("failed to encode weather date %s: %w", key, err)
			}
			weather.TimeSeriesData[key] = raw
		}
	}

	collections := map[string]summaryCollection{vegetationCollection: vegetation}
	if len(weather.TimeSeriesData) > 0 {
		collections[weatherCollection] = weather
	}

	raw, err := json.MarshalIndent(collections, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results summary: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write results summary: %w", err)
	}
	log.Infof("[ResultsSummary] wrote %d dates to %s", multi.Len(), path)
	return nil
}
