package smooth

import (
	"math"
	"testing"

	"github.com/montanaflynn/stats"

	"goveg/domain/core"
	"goveg/domain/series"
)

func monthly(t *testing.T, values []float64) series.TimeSeries {
	t.Helper()
	start, err := core.ParseDate("2016-01-01")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	points := make([]series.Point, len(values))
	for i, v := range values {
		points[i] = series.Point{Date: start.AddDays(i * 30), Value: v}
	}
	return series.TimeSeries{Variable: series.VarCentrality, Points: points}
}

// TestLoessConstantSeries verifies a flat series smooths to itself with
// zero residual.
func TestLoessConstantSeries(t *testing.T) {
	ts := monthly(t, []float64{4, 4, 4, 4, 4, 4, 4, 4})

	smoothed, residual, err := Loess(ts, 0.5)
	if err != nil {
		t.Fatalf("Loess failed: %v", err)
	}
	for i := 0; i < smoothed.Len(); i++ {
		if math.Abs(smoothed.Points[i].Value-4) > 1e-9 {
			t.Errorf("Expected smoothed value 4 at index %d, got %v", i, smoothed.Points[i].Value)
		}
		if math.Abs(residual.Points[i].Value) > 1e-9 {
			t.Errorf("Expected zero residual at index %d, got %v", i, residual.Points[i].Value)
		}
	}
}

// TestLoessRecoversLine verifies the local linear fit reproduces a
// straight line exactly, including at the boundaries.
func TestLoessRecoversLine(t *testing.T) {
	values := make([]float64, 10)
	for i := range values {
		values[i] = 2*float64(i) + 1
	}
	ts := monthly(t, values)

	smoothed, residual, err := Loess(ts, 0.5)
	if err != nil {
		t.Fatalf("Loess failed: %v", err)
	}
	for i := 0; i < ts.Len(); i++ {
		if math.Abs(smoothed.Points[i].Value-values[i]) > 1e-6 {
			t.Errorf("Expected line recovered at index %d: want %v, got %v", i, values[i], smoothed.Points[i].Value)
		}
		if math.Abs(residual.Points[i].Value) > 1e-6 {
			t.Errorf("Expected zero residual at index %d, got %v", i, residual.Points[i].Value)
		}
	}
}

// TestLoessReducesNoise verifies smoothing shrinks the spread of an
// alternating series.
func TestLoessReducesNoise(t *testing.T) {
	values := make([]float64, 12)
	for i := range values {
		if i%2 == 0 {
			values[i] = 1
		} else {
			values[i] = -1
		}
	}
	ts := monthly(t, values)

	smoothed, _, err := Loess(ts, 0.5)
	if err != nil {
		t.Fatalf("Loess failed: %v", err)
	}

	rawStd, _ := stats.StandardDeviation(ts.Values())
	smoothStd, _ := stats.StandardDeviation(smoothed.Values())
	if smoothStd >= rawStd {
		t.Errorf("Expected smoothing to reduce spread: raw %v, smoothed %v", rawStd, smoothStd)
	}
}

// TestLoessRoundTrip verifies smoothed + residual reproduces the raw
// series bit for bit.
func TestLoessRoundTrip(t *testing.T) {
	ts := monthly(t, []float64{0.42, 0.45, 0.41, 0.38, 0.44, 0.47, 0.40, 0.39, 0.43, 0.46})

	smoothed, residual, err := Loess(ts, 0.3)
	if err != nil {
		t.Fatalf("Loess failed: %v", err)
	}
	for i := 0; i < ts.Len(); i++ {
		sum := smoothed.Points[i].Value + residual.Points[i].Value
		if sum != ts.Points[i].Value {
			t.Errorf("Expected smoothed+residual to equal raw at index %d: want %v, got %v",
				i, ts.Points[i].Value, sum)
		}
		if !smoothed.Points[i].Date.Equal(ts.Points[i].Date) {
			t.Errorf("Expected timestamps preserved at index %d", i)
		}
	}
}

// TestLoessDeterminism verifies repeated runs are identical.
func TestLoessDeterminism(t *testing.T) {
	ts := monthly(t, []float64{0.4, 0.5, 0.3, 0.6, 0.2, 0.7, 0.1})

	first, _, err := Loess(ts, 0.4)
	if err != nil {
		t.Fatalf("Loess failed: %v", err)
	}
	second, _, err := Loess(ts, 0.4)
	if err != nil {
		t.Fatalf("Loess failed: %v", err)
	}
	for i := 0; i < first.Len(); i++ {
		if first.Points[i].Value != second.Points[i].Value {
			t.Errorf("Expected identical fits at index %d", i)
		}
	}
}

// TestLoessErrors verifies the short-series and bad-fraction failures.
func TestLoessErrors(t *testing.T) {
	if _, _, err := Loess(monthly(t, []float64{1, 2}), 0.5); !core.IsInsufficientDataError(err) {
		t.Errorf("Expected insufficient data error, got %v", err)
	}
	if _, _, err := Loess(monthly(t, []float64{1, 2, 3}), 0); !core.IsConfigError(err) {
		t.Errorf("Expected configuration error for zero fraction, got %v", err)
	}
	if _, _, err := Loess(monthly(t, []float64{1, 2, 3}), 1.5); !core.IsConfigError(err) {
		t.Errorf("Expected configuration error for fraction above one, got %v", err)
	}
}
