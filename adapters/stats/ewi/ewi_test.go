package ewi

import (
	"math"
	"testing"

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

// TestFirstDifference verifies values, length, and timestamps of the
// differenced series.
func TestFirstDifference(t *testing.T) {
	ts := monthly(t, []float64{1, 3, 6, 10})

	diff, err := FirstDifference(ts)
	if err != nil {
		t.Fatalf("FirstDifference failed: %v", err)
	}
	if diff.Len() != 3 {
		t.Fatalf("Expected length 3, got %d", diff.Len())
	}
	for i, expected := range []float64{2, 3, 4} {
		if diff.Points[i].Value != expected {
			t.Errorf("Expected difference %v at index %d, got %v", expected, i, diff.Points[i].Value)
		}
		if !diff.Points[i].Date.Equal(ts.Points[i+1].Date) {
			t.Errorf("Expected difference %d stamped at the later point", i)
		}
	}
}

// TestFirstDifferenceRoundTrip verifies the original series is exactly
// recoverable from its first point plus the running sum of differences.
func TestFirstDifferenceRoundTrip(t *testing.T) {
	ts := monthly(t, []float64{0.42, 0.38, 0.45, 0.41, 0.47, 0.40})

	diff, err := FirstDifference(ts)
	if err != nil {
		t.Fatalf("FirstDifference failed: %v", err)
	}

	running := ts.Points[0].Value
	for i := 0; i < diff.Len(); i++ {
		running += diff.Points[i].Value
		original := ts.Points[i+1].Value
		if math.Abs(running-original) > 1e-12 {
			t.Errorf("Expected reconstruction %v at index %d, got %v", original, i+1, running)
		}
	}
}

// TestFirstDifferenceTooShort verifies a singleton series is rejected.
func TestFirstDifferenceTooShort(t *testing.T) {
	if _, err := FirstDifference(monthly(t, []float64{1})); !core.IsInsufficientDataError(err) {
		t.Errorf("Expected insufficient data error, got %v", err)
	}
}

// TestRollingShape verifies output length n-w+1 and trailing-edge
// timestamps.
func TestRollingShape(t *testing.T) {
	ts := monthly(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})

	out, err := Rolling(ts, 4)
	if err != nil {
		t.Fatalf("Rolling failed: %v", err)
	}
	if out.Len() != 7 {
		t.Fatalf("Expected 7 window positions, got %d", out.Len())
	}
	if !out.Dates[0].Equal(ts.Points[3].Date) {
		t.Errorf("Expected first indicator at the 4th point's date, got %s", out.Dates[0])
	}
	if !out.Dates[6].Equal(ts.Points[9].Date) {
		t.Errorf("Expected last indicator at the final date, got %s", out.Dates[6])
	}
}

// TestRollingAutocorrelationExtremes verifies a monotone ramp scores +1
// and an alternating series -1.
func TestRollingAutocorrelationExtremes(t *testing.T) {
	ramp, err := Rolling(monthly(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}), 5)
	if err != nil {
		t.Fatalf("Rolling failed: %v", err)
	}
	for j, r := range ramp.AR1 {
		if math.Abs(r-1) > 1e-9 {
			t.Errorf("Expected autocorrelation 1 for ramp window %d, got %v", j, r)
		}
	}

	alt, err := Rolling(monthly(t, []float64{1, -1, 1, -1, 1, -1, 1, -1}), 5)
	if err != nil {
		t.Fatalf("Rolling failed: %v", err)
	}
	for j, r := range alt.AR1 {
		if math.Abs(r+1) > 1e-9 {
			t.Errorf("Expected autocorrelation -1 for alternating window %d, got %v", j, r)
		}
	}
}

// TestRollingStdDev verifies the sample standard deviation of a known
// window.
func TestRollingStdDev(t *testing.T) {
	out, err := Rolling(monthly(t, []float64{1, 1, 1, 3}), 4)
	if err != nil {
		t.Fatalf("Rolling failed: %v", err)
	}
	if out.Len() != 1 {
		t.Fatalf("Expected single window, got %d", out.Len())
	}
	if math.Abs(out.StdDev[0]-1) > 1e-12 {
		t.Errorf("Expected sample standard deviation 1, got %v", out.StdDev[0])
	}
}

// TestRollingFlatWindow verifies a zero-variance window maps to
// autocorrelation 0 instead of an undefined value.
func TestRollingFlatWindow(t *testing.T) {
	out, err := Rolling(monthly(t, []float64{2, 2, 2, 2, 2}), 3)
	if err != nil {
		t.Fatalf("Rolling failed: %v", err)
	}
	for j := 0; j < out.Len(); j++ {
		if out.AR1[j] != 0 {
			t.Errorf("Expected autocorrelation 0 for flat window %d, got %v", j, out.AR1[j])
		}
		if out.StdDev[j] != 0 {
			t.Errorf("Expected standard deviation 0 for flat window %d, got %v", j, out.StdDev[j])
		}
	}
}

// TestRollingErrors verifies the window bounds.
func TestRollingErrors(t *testing.T) {
	ts := monthly(t, []float64{1, 2, 3})

	if _, err := Rolling(ts, 4); !core.IsInsufficientDataError(err) {
		t.Errorf("Expected insufficient data error for window beyond series, got %v", err)
	}
	if _, err := Rolling(ts, 1); !core.IsConfigError(err) {
		t.Errorf("Expected configuration error for window below 2, got %v", err)
	}
}

// TestEstimateWholeSeries verifies the full-series AR1 fit on the two
// extreme shapes.
func TestEstimateWholeSeries(t *testing.T) {
	ramp, err := Estimate(monthly(t, []float64{1, 2, 3, 4, 5, 6}))
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if math.Abs(ramp.Phi-1) > 1e-9 {
		t.Errorf("Expected phi 1 for ramp, got %v", ramp.Phi)
	}
	if ramp.StdErr > 1e-6 {
		t.Errorf("Expected near-zero standard error at phi 1, got %v", ramp.StdErr)
	}
	if ramp.N != 6 {
		t.Errorf("Expected n 6, got %d", ramp.N)
	}

	alt, err := Estimate(monthly(t, []float64{1, -1, 1, -1, 1, -1}))
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if math.Abs(alt.Phi+1) > 1e-9 {
		t.Errorf("Expected phi -1 for alternating series, got %v", alt.Phi)
	}

	if _, err := Estimate(monthly(t, []float64{1, 2})); !core.IsInsufficientDataError(err) {
		t.Errorf("Expected insufficient data error, got %v", err)
	}
}
