package ewi

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"goveg/domain/core"
	"goveg/domain/resilience"
	"goveg/domain/series"
)

// Rolling computes lag-1 autocorrelation and sample standard deviation
// over a moving window of w points. For n input points the output has
// n-w+1 positions; position j covers points [j, j+w-1] and is timestamped
// at the window's trailing edge, so no indicator value depends on
// observations after its own date. A flat window yields autocorrelation 0
// rather than an undefined value.
func Rolling(ts series.TimeSeries, window int) (resilience.IndicatorSeries, error) {
	if window < 2 {
		return resilience.IndicatorSeries{}, core.NewConfigError("indicator_window", "must be at least 2")
	}
	n := ts.Len()
	if n < window {
		return resilience.IndicatorSeries{}, core.NewInsufficientDataError("indicators", n, window)
	}

	values := ts.Values()
	count := n - window + 1
	out := resilience.IndicatorSeries{
		Window: window,
		Dates:  make([]core.Date, count),
		AR1:    make([]float64, count),
		StdDev: make([]float64, count),
	}

	for j := 0; j < count; j++ {
		slice := values[j : j+window]
		out.Dates[j] = ts.Points[j+window-1].Date
		out.AR1[j] = lag1Autocorrelation(slice)

		sd, err := stats.StandardDeviationSample(slice)
		if err != nil {
			return resilience.IndicatorSeries{}, err
		}
		out.StdDev[j] = sd
	}

	return out, nil
}

// Estimate fits the whole-series AR1 coefficient as the lag-1 Pearson
// autocorrelation, with the large-sample standard error
// sqrt((1-phi^2)/m) over the m lag pairs.
func Estimate(ts series.TimeSeries) (resilience.AR1Estimate, error) {
	if ts.Len() < 3 {
		return resilience.AR1Estimate{}, core.NewInsufficientDataError("ar1_estimate", ts.Len(), 3)
	}

	phi := lag1Autocorrelation(ts.Values())
	m := ts.Len() - 1
	se := math.Sqrt(math.Max(0, 1-phi*phi) / float64(m))

	return resilience.AR1Estimate{Phi: phi, StdErr: se, N: ts.Len()}, nil
}

// lag1Autocorrelation is the Pearson correlation between the series and
// itself shifted by one step. Zero-variance input maps to 0.
func lag1Autocorrelation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	r := stat.Correlation(values[:len(values)-1], values[1:], nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
