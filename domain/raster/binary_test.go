package raster

import (
	"math"
	"testing"
)

// TestBinarizeThreshold tests the vegetated-iff-at-or-above rule
func TestBinarizeThreshold(t *testing.T) {
	im, err := FromGrid([][]float64{
		{0.29, 0.30},
		{0.31, math.NaN()},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	tiles, err := Tile(im, 2, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	mask := Binarize(tiles[0], 0.30)

	if mask.Vegetated(0, 0) {
		t.Error("Expected 0.29 below threshold 0.30 to be bare")
	}
	if !mask.Vegetated(0, 1) {
		t.Error("Expected 0.30 at threshold 0.30 to be vegetated")
	}
	if !mask.Vegetated(1, 0) {
		t.Error("Expected 0.31 above threshold 0.30 to be vegetated")
	}
	if mask.Vegetated(1, 1) {
		t.Error("Expected NaN cell to be bare")
	}

	if mask.VegetatedCount() != 2 {
		t.Errorf("Expected 2 vegetated cells, got %d", mask.VegetatedCount())
	}
	if got := mask.VegetatedFraction(); got != 0.5 {
		t.Errorf("Expected vegetated fraction 0.5, got %g", got)
	}
}

// TestMaskFlatIndex tests the row-major node addressing
func TestMaskFlatIndex(t *testing.T) {
	mask := NewMask(3, 4, make([]bool, 12))

	tests := []struct {
		r, c     int
		expected int
	}{
		{0, 0, 0},
		{0, 3, 3},
		{1, 0, 4},
		{2, 3, 11},
	}

	for _, test := range tests {
		if got := mask.FlatIndex(test.r, test.c); got != test.expected {
			t.Errorf("Expected FlatIndex(%d,%d) = %d, got %d", test.r, test.c, test.expected, got)
		}
	}
}

// TestNewMaskCopiesCells tests that the mask owns its cells
func TestNewMaskCopiesCells(t *testing.T) {
	cells := []bool{true, false, false, true}
	mask := NewMask(2, 2, cells)

	cells[1] = true
	if mask.Vegetated(0, 1) {
		t.Error("Expected mask to be unaffected by mutation of the source slice")
	}
}
