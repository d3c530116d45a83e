// Package ewi computes early-warning indicators of resilience loss:
// first differencing to strip the seasonal cycle, then moving-window
// lag-1 autocorrelation and standard deviation.
package ewi

import (
	"goveg/domain/core"
	"goveg/domain/series"
)

// FirstDifference returns d[i] = x[i+1] - x[i], timestamped at the later
// point, so the output is one shorter than the input. The input is fully
// recoverable as x[0] plus the running sum of differences.
func FirstDifference(ts series.TimeSeries) (series.TimeSeries, error) {
	if ts.Len() < 2 {
		return series.TimeSeries{}, core.NewInsufficientDataError("deseasonalize", ts.Len(), 2)
	}

	points := make([]series.Point, ts.Len()-1)
	for i := 1; i < ts.Len(); i++ {
		points[i-1] = series.Point{
			Date:  ts.Points[i].Date,
			Value: ts.Points[i].Value - ts.Points[i-1].Value,
		}
	}
	return series.TimeSeries{Variable: ts.Variable, Points: points}, nil
}
