// Package preprocess cleans raw metric series before smoothing: z-score
// outlier removal followed by resampling onto a uniform date grid.
package preprocess

import (
	"math"

	"github.com/montanaflynn/stats"

	"goveg/domain/core"
	"goveg/domain/series"
)

// RemoveOutliers drops points lying more than sigmas standard deviations
// from the mean. Window 0 measures deviation against the whole series; a
// positive window measures against a centered window of that many points.
// A zero-spread stretch keeps all of its points.
func RemoveOutliers(ts series.TimeSeries, sigmas float64, window int) (series.TimeSeries, int, error) {
	if sigmas <= 0 {
		return series.TimeSeries{}, 0, core.NewConfigError("outlier_sigmas", "must be positive")
	}
	if window < 0 {
		return series.TimeSeries{}, 0, core.NewConfigError("outlier_window", "must be zero or positive")
	}
	if ts.Len() == 0 {
		return ts, 0, nil
	}

	values := ts.Values()
	kept := make([]series.Point, 0, len(values))
	pruned := 0

	for i, p := range ts.Points {
		lo, hi := 0, len(values)
		if window > 0 && window < len(values) {
			lo = i - window/2
			if lo < 0 {
				lo = 0
			}
			hi = lo + window
			if hi > len(values) {
				hi = len(values)
				lo = hi - window
			}
		}

		mean, err := stats.Mean(values[lo:hi])
		if err != nil {
			return series.TimeSeries{}, 0, err
		}
		stdDev, err := stats.StandardDeviation(values[lo:hi])
		if err != nil {
			return series.TimeSeries{}, 0, err
		}

		if math.Abs(p.Value-mean) > sigmas*stdDev {
			pruned++
			continue
		}
		kept = append(kept, p)
	}

	return series.TimeSeries{Variable: ts.Variable, Points: kept}, pruned, nil
}
