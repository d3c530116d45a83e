package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"goveg/domain/core"
	"goveg/domain/raster"
	"goveg/domain/series"
	"goveg/internal/log"
	"goveg/ports"
)

// Image-series file format: one site, one entry per acquisition date with
// the decoded row-major grid. Null cells are cloud-masked pixels; an entry
// with no values is a date the archive lists but cannot serve.
type archiveFile struct {
	Site  core.SiteID    `json:"site"`
	Dates []archiveEntry `json:"dates"`
}

type archiveEntry struct {
	Date          core.Date  `json:"date"`
	Rows          int        `json:"rows,omitempty"`
	Cols          int        `json:"cols,omitempty"`
	Values        []*float64 `json:"values,omitempty"`
	Precipitation *float64   `json:"precipitation,omitempty"`
	Temperature   *float64   `json:"temperature,omitempty"`
}

// ImageArchive implements ImageryPort over a decoded image-series file,
// so already-downloaded archives can be surveyed without a live provider.
type ImageArchive struct {
	site    core.SiteID
	dates   []core.Date
	images  map[string]*raster.Image
	climate map[string]series.Climate
}

var _ ports.ImageryPort = (*ImageArchive)(nil)

// OpenImageArchive loads an image-series file into memory. Grids are
// decoded eagerly so a malformed file fails at startup, not mid-survey.
func OpenImageArchive(path string) (*ImageArchive, error) {
	startTime := time.Now()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image archive: %w", err)
	}

	var file archiveFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to decode image archive %s: %w", path, err)
	}
	if file.Site == "" {
		return nil, core.NewConfigError("image archive", "site is empty")
	}

	archive := &ImageArchive{
		site:    file.Site,
		images:  make(map[string]*raster.Image),
		climate: make(map[string]series.Climate),
	}
	unavailable := 0
	for _, entry := range file.Dates {
		if entry.Date.IsZero() {
			return nil, core.NewConfigError("image archive", "entry without a date")
		}
		key := entry.Date.String()
		if _, exists := archive.images[key]; exists {
			return nil, core.NewConfigError("image archive", fmt.Sprintf("duplicate date %s", key))
		}
		archive.dates = append(archive.dates, entry.Date)

		if len(entry.Values) == 0 {
			// Listed but unavailable; FetchImage will report it
			unavailable++
			archive.images[key] = nil
		} else {
			img, err := decodeGrid(entry)
			if err != nil {
				return nil, fmt.Errorf("date %s: %w", key, err)
			}
			archive.images[key] = img
		}

		if entry.Precipitation != nil && entry.Temperature != nil {
			archive.climate[key] = series.Climate{
				Precipitation: *entry.Precipitation,
				Temperature:   *entry.Temperature,
			}
		}
	}
	sort.Slice(archive.dates, func(i, j int) bool { return archive.dates[i].Before(archive.dates[j]) })

	elapsed := time.Since(startTime)
	log.Infof("[ImageArchive] %s loaded in %.2fms (%d dates, %d unavailable, site %s)",
		filepath.Base(path), float64(elapsed.Nanoseconds())/1e6, len(archive.dates), unavailable, archive.site)
	return archive, nil
}

func decodeGrid(entry archiveEntry) (*raster.Image, error) {
	if entry.Rows <= 0 || entry.Cols <= 0 {
		return nil, core.NewConfigError("image archive", fmt.Sprintf("grid size %dx%d is not positive", entry.Rows, entry.Cols))
	}
	if len(entry.Values) != entry.Rows*entry.Cols {
		return nil, core.NewConfigError("image archive",
			fmt.Sprintf("expected %d values, got %d", entry.Rows*entry.Cols, len(entry.Values)))
	}
	data := make([]float64, len(entry.Values))
	for i, v := range entry.Values {
		if v == nil {
			data[i] = math.NaN()
		} else {
			data[i] = *v
		}
	}
	return raster.NewImage(entry.Rows, entry.Cols, data)
}

// Site returns the site the archive covers
func (a *ImageArchive) Site() core.SiteID { return a.site }

func (a *ImageArchive) ListDates(ctx context.Context, site core.SiteID) ([]core.Date, error) {
	if site != a.site {
		return nil, core.NewNotFoundError("site archive", site.String())
	}
	dates := make([]core.Date, len(a.dates))
	copy(dates, a.dates)
	return dates, nil
}

func (a *ImageArchive) FetchImage(ctx context.Context, site core.SiteID, date core.Date) (*raster.Image, error) {
	if site != a.site {
		return nil, core.NewNotFoundError("site archive", site.String())
	}
	img, listed := a.images[date.String()]
	if !listed || img == nil {
		return nil, fmt.Errorf("%w: %s %s", core.ErrImageUnavailable, site, date)
	}
	return img, nil
}

func (a *ImageArchive) FetchClimate(ctx context.Context, site core.SiteID, date core.Date) (series.Climate, error) {
	if site != a.site {
		return series.Climate{}, core.NewNotFoundError("site archive", site.String())
	}
	climate, ok := a.climate[date.String()]
	if !ok {
		return series.Climate{}, core.NewNotFoundError("climate", fmt.Sprintf("%s %s", site, date))
	}
	return climate, nil
}

// ArchiveDate is one date of an image archive under construction. A nil
// image marks the date as listed but unavailable.
type ArchiveDate struct {
	Date    core.Date
	Image   *raster.Image
	Climate *series.Climate
}

// WriteImageArchive writes an image-series file that OpenImageArchive can
// load back. NaN cells are encoded as JSON nulls.
func WriteImageArchive(path string, site core.SiteID, dates []ArchiveDate) error {
	if site == "" {
		return core.NewConfigError("image archive", "site is empty")
	}

	sorted := make([]ArchiveDate, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	file := archiveFile{Site: site, Dates: make([]archiveEntry, 0, len(sorted))}
	for _, d := range sorted {
		entry := archiveEntry{Date: d.Date}
		if d.Image != nil {
			entry.Rows = d.Image.Rows()
			entry.Cols = d.Image.Cols()
			entry.Values = make([]*float64, 0, entry.Rows*entry.Cols)
			for r := 0; r < entry.Rows; r++ {
				for c := 0; c < entry.Cols; c++ {
					v := d.Image.At(r, c)
					if math.IsNaN(v) {
						entry.Values = append(entry.Values, nil)
					} else {
						value := v
						entry.Values = append(entry.Values, &value)
					}
				}
			}
		}
		if d.Climate != nil {
			p, t := d.Climate.Precipitation, d.Climate.Temperature
			entry.Precipitation = &p
			entry.Temperature = &t
		}
		file.Dates = append(file.Dates, entry)
	}

	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode image archive: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create archive directory: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write image archive: %w", err)
	}
	log.Infof("[ImageArchive] wrote %d dates to %s", len(file.Dates), path)
	return nil
}
