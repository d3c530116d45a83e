// Package smooth fits a locally weighted regression through a metric
// series and splits it into smoothed and residual parts.
package smooth

import (
	"math"

	"goveg/domain/core"
	"goveg/domain/series"
)

// Loess smooths the series with locally weighted linear regression using
// tricube weights over the k nearest neighbors of each point, where
// k = ceil(fraction * n) clamped to [2, n]. It returns the smoothed
// series on the same timestamps and the residual raw - smoothed, so
// smoothed[i] + residual[i] always reproduces raw[i]. The fit is
// deterministic given the input and fraction.
func Loess(ts series.TimeSeries, fraction float64) (series.TimeSeries, series.TimeSeries, error) {
	if fraction <= 0 || fraction > 1 {
		return series.TimeSeries{}, series.TimeSeries{}, core.NewConfigError("smoothing_fraction", "must be in (0, 1]")
	}
	n := ts.Len()
	if n < 3 {
		return series.TimeSeries{}, series.TimeSeries{}, core.NewInsufficientDataError("smooth", n, 3)
	}

	first := ts.Points[0].Date
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range ts.Points {
		xs[i] = float64(p.Date.DaysSince(first))
		ys[i] = p.Value
	}

	k := int(math.Ceil(fraction * float64(n)))
	if k < 2 {
		k = 2
	}
	if k > n {
		k = n
	}

	smoothedPoints := make([]series.Point, n)
	residualPoints := make([]series.Point, n)
	for i := 0; i < n; i++ {
		fitted := fitLocal(xs, ys, i, k)
		smoothedPoints[i] = series.Point{Date: ts.Points[i].Date, Value: fitted}
		residualPoints[i] = series.Point{Date: ts.Points[i].Date, Value: ys[i] - fitted}
	}

	smoothed := series.TimeSeries{Variable: ts.Variable, Points: smoothedPoints}
	residual := series.TimeSeries{Variable: ts.Variable, Points: residualPoints}
	return smoothed, residual, nil
}

// fitLocal fits a weighted line through the k nearest neighbors of point
// i and evaluates it at xs[i].
func fitLocal(xs, ys []float64, i, k int) float64 {
	lo, hi := neighborhood(xs, i, k)

	// Bandwidth is the distance to the farthest chosen neighbor; that
	// neighbor gets tricube weight zero.
	dmax := 0.0
	for j := lo; j <= hi; j++ {
		if d := math.Abs(xs[j] - xs[i]); d > dmax {
			dmax = d
		}
	}

	var sw, swx, swy, swxx, swxy float64
	for j := lo; j <= hi; j++ {
		dx := xs[j] - xs[i]
		w := 1.0
		if dmax > 0 {
			u := math.Abs(dx) / dmax
			t := 1 - u*u*u
			w = t * t * t
		}
		sw += w
		swx += w * dx
		swy += w * ys[j]
		swxx += w * dx * dx
		swxy += w * dx * ys[j]
	}

	denom := sw*swxx - swx*swx
	if math.Abs(denom) < 1e-12 || sw == 0 {
		if sw == 0 {
			return ys[i]
		}
		return swy / sw
	}

	slope := (sw*swxy - swx*swy) / denom
	intercept := (swy - slope*swx) / sw
	return intercept
}

// neighborhood returns the inclusive index range of the k nearest
// neighbors of xs[i], found by expanding outward over the sorted xs.
// Distance ties prefer the earlier point.
func neighborhood(xs []float64, i, k int) (int, int) {
	lo, hi := i, i
	for hi-lo+1 < k {
		left := math.Inf(1)
		if lo > 0 {
			left = xs[i] - xs[lo-1]
		}
		right := math.Inf(1)
		if hi < len(xs)-1 {
			right = xs[hi+1] - xs[i]
		}
		if left <= right {
			lo--
		} else {
			hi++
		}
	}
	return lo, hi
}
