package trend

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"goveg/domain/core"
	"goveg/domain/series"
)

// SurrogateTest shuffles the series values count times with the supplied
// generator, keeping the time axis fixed, and reports the fraction of
// surrogates whose |tau| reaches the observed one. Identical generators
// produce identical fractions, so runs replay exactly from the run seed.
func SurrogateTest(ts series.TimeSeries, observedTau float64, count int, rng *rand.Rand) (float64, error) {
	if count <= 0 {
		return 0, core.NewConfigError("surrogate_count", "must be positive")
	}
	if rng == nil {
		return 0, core.NewConfigError("surrogate_rng", "generator is required")
	}
	n := ts.Len()
	if n < 4 {
		return 0, core.NewInsufficientDataError("surrogate", n, 4)
	}

	first := ts.Points[0].Date
	xs := make([]float64, n)
	for i, p := range ts.Points {
		xs[i] = float64(p.Date.DaysSince(first))
	}

	shuffled := make([]float64, n)
	copy(shuffled, ts.Values())

	observed := math.Abs(observedTau)
	reached := 0
	for s := 0; s < count; s++ {
		rng.Shuffle(n, func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		if math.Abs(stat.Kendall(xs, shuffled, nil)) >= observed {
			reached++
		}
	}

	return float64(reached) / float64(count), nil
}
