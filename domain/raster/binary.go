package raster

import "math"

// BinaryMask classifies each cell of a sub-image as vegetated or bare.
type BinaryMask struct {
	rows, cols int
	cells      []bool // row-major, true = vegetated
}

// Binarize thresholds a sub-image: a cell is vegetated iff its intensity
// is at or above the threshold. NaN cells are bare.
func Binarize(s SubImage, threshold float64) BinaryMask {
	cells := make([]bool, s.Rows()*s.Cols())
	for r := 0; r < s.Rows(); r++ {
		for c := 0; c < s.Cols(); c++ {
			v := s.At(r, c)
			cells[r*s.Cols()+c] = !math.IsNaN(v) && v >= threshold
		}
	}
	return BinaryMask{rows: s.Rows(), cols: s.Cols(), cells: cells}
}

// NewMask builds a mask directly from row-major cells. Intended for tests
// and synthetic pattern generation.
func NewMask(rows, cols int, cells []bool) BinaryMask {
	copied := make([]bool, len(cells))
	copy(copied, cells)
	return BinaryMask{rows: rows, cols: cols, cells: copied}
}

// Rows returns the number of rows
func (m BinaryMask) Rows() int { return m.rows }

// Cols returns the number of columns
func (m BinaryMask) Cols() int { return m.cols }

// Vegetated reports whether the cell at (r, c) is vegetated
func (m BinaryMask) Vegetated(r, c int) bool {
	return m.cells[r*m.cols+c]
}

// FlatIndex maps (r, c) to the cell's row-major index, the node identity
// used when the mask becomes a graph.
func (m BinaryMask) FlatIndex(r, c int) int {
	return r*m.cols + c
}

// VegetatedCount returns the number of vegetated cells
func (m BinaryMask) VegetatedCount() int {
	count := 0
	for _, v := range m.cells {
		if v {
			count++
		}
	}
	return count
}

// VegetatedFraction returns the vegetated share of all cells
func (m BinaryMask) VegetatedFraction() float64 {
	if len(m.cells) == 0 {
		return 0
	}
	return float64(m.VegetatedCount()) / float64(len(m.cells))
}
