// Package trend tests indicator series for monotonic trends with the
// Kendall rank statistic and seeded surrogate comparisons.
package trend

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"goveg/domain/core"
	"goveg/domain/resilience"
	"goveg/domain/series"
)

// Tau computes the Kendall rank correlation of the series values against
// time, with the two-sided p-value from the normal approximation
// z = 3*tau*sqrt(n(n-1)) / sqrt(2(2n+5)). A zero-variance series reports
// tau 0 with p-value 1. At least 4 points are required.
func Tau(ts series.TimeSeries) (float64, float64, error) {
	n := ts.Len()
	if n < 4 {
		return 0, 0, core.NewInsufficientDataError("trend", n, 4)
	}

	values := ts.Values()
	if flat(values) {
		return 0, 1, nil
	}

	first := ts.Points[0].Date
	xs := make([]float64, n)
	for i, p := range ts.Points {
		xs[i] = float64(p.Date.DaysSince(first))
	}

	tau := stat.Kendall(xs, values, nil)
	return tau, tauPValue(tau, n), nil
}

// Evaluate assembles the trend verdict for one indicator vector. The
// surrogate and sensitivity fields start empty; callers attach them when
// those tests run.
func Evaluate(variable core.VariableKey, indicator string, ts series.TimeSeries, alpha float64) (resilience.TrendResult, error) {
	if alpha <= 0 || alpha >= 1 {
		return resilience.TrendResult{}, core.NewConfigError("significance_level", "must be in (0, 1)")
	}

	tau, pValue, err := Tau(ts)
	if err != nil {
		return resilience.TrendResult{}, err
	}

	return resilience.TrendResult{
		Variable:    variable,
		Indicator:   indicator,
		Tau:         tau,
		PValue:      pValue,
		Significant: pValue < alpha,
		N:           ts.Len(),
	}, nil
}

// tauPValue is the two-sided p-value of tau under the null of no trend
func tauPValue(tau float64, n int) float64 {
	nf := float64(n)
	z := 3 * tau * math.Sqrt(nf*(nf-1)) / math.Sqrt(2*(2*nf+5))
	normal := distuv.Normal{Mu: 0, Sigma: 1}
	p := 2 * (1 - normal.CDF(math.Abs(z)))
	if p > 1 {
		p = 1
	}
	return p
}

func flat(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
