package preprocess

import (
	"fmt"

	"gonum.org/v1/gonum/interp"

	"goveg/domain/core"
	"goveg/domain/series"
)

// Resample interpolates the series onto a uniform grid of intervalDays,
// anchored at the first observation. Interior gaps are filled piecewise
// linearly; the grid never extends past the last observation, so no value
// is extrapolated.
func Resample(ts series.TimeSeries, intervalDays int) (series.TimeSeries, error) {
	if intervalDays <= 0 {
		return series.TimeSeries{}, core.NewConfigError("resample_days", "must be positive")
	}
	if ts.Len() < 2 {
		return series.TimeSeries{}, core.NewInsufficientDataError("resample", ts.Len(), 2)
	}
	if err := ts.Validate(); err != nil {
		return series.TimeSeries{}, err
	}

	first := ts.Points[0].Date
	xs := make([]float64, ts.Len())
	ys := make([]float64, ts.Len())
	for i, p := range ts.Points {
		xs[i] = float64(p.Date.DaysSince(first))
		ys[i] = p.Value
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return series.TimeSeries{}, fmt.Errorf("fit interpolant: %w", err)
	}

	span := xs[len(xs)-1]
	if span < float64(intervalDays) {
		return series.TimeSeries{}, fmt.Errorf("%w: resample span of %d days is shorter than the %d-day interval",
			core.ErrInsufficientData, int(span), intervalDays)
	}

	var points []series.Point
	for day := 0.0; day <= span; day += float64(intervalDays) {
		points = append(points, series.Point{
			Date:  first.AddDays(int(day)),
			Value: pl.Predict(day),
		})
	}

	return series.TimeSeries{Variable: ts.Variable, Points: points}, nil
}

// Preprocess removes outliers and resamples in one step. It fails with an
// insufficient-data error when fewer than 3 points survive pruning, and
// reports how many points were pruned.
func Preprocess(ts series.TimeSeries, sigmas float64, window, intervalDays int) (series.TimeSeries, int, error) {
	cleaned, pruned, err := RemoveOutliers(ts, sigmas, window)
	if err != nil {
		return series.TimeSeries{}, 0, err
	}
	if cleaned.Len() < 3 {
		return series.TimeSeries{}, pruned, core.NewInsufficientDataError("preprocess", cleaned.Len(), 3)
	}

	resampled, err := Resample(cleaned, intervalDays)
	if err != nil {
		return series.TimeSeries{}, pruned, err
	}
	return resampled, pruned, nil
}
