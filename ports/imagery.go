package ports

import (
	"context"

	"goveg/domain/core"
	"goveg/domain/raster"
	"goveg/domain/series"
)

// ImageryPort supplies one site's vegetation-index archive. Images are
// keyed by acquisition date; a date listed but not fetchable surfaces as
// an image-unavailable error and is skipped, never retried.
type ImageryPort interface {
	// ListDates returns the acquisition dates of the archive, sorted
	ListDates(ctx context.Context, site core.SiteID) ([]core.Date, error)

	// FetchImage loads the vegetation-index raster for one date
	FetchImage(ctx context.Context, site core.SiteID, date core.Date) (*raster.Image, error)

	// FetchClimate loads the weather values for one date. A date without
	// climate coverage returns a not-found error; the record is kept
	// without climate rather than skipped.
	FetchClimate(ctx context.Context, site core.SiteID, date core.Date) (series.Climate, error)
}
