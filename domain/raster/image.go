package raster

import (
	"fmt"
	"math"

	"goveg/domain/core"
)

// Image is a single-band vegetation-index raster for one acquisition date.
// Cells hold intensity values; NaN marks pixels removed by upstream cloud
// masking. Immutable once constructed.
type Image struct {
	rows, cols int
	data       []float64 // row-major
}

// NewImage builds an image from row-major cell data. The data slice is
// copied so later mutation of the caller's slice cannot reach the image.
func NewImage(rows, cols int, data []float64) (*Image, error) {
	if rows <= 0 || cols <= 0 {
		return nil, core.NewConfigError("image size", fmt.Sprintf("%dx%d is not positive", rows, cols))
	}
	if len(data) != rows*cols {
		return nil, core.NewConfigError("image data", fmt.Sprintf("expected %d values, got %d", rows*cols, len(data)))
	}
	copied := make([]float64, len(data))
	copy(copied, data)
	return &Image{rows: rows, cols: cols, data: copied}, nil
}

// FromGrid builds an image from a 2-D slice of rows. All rows must have
// the same length.
func FromGrid(grid [][]float64) (*Image, error) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return nil, core.NewConfigError("image grid", "grid is empty")
	}
	rows, cols := len(grid), len(grid[0])
	data := make([]float64, 0, rows*cols)
	for r, row := range grid {
		if len(row) != cols {
			return nil, core.NewConfigError("image grid", fmt.Sprintf("row %d has %d cells, expected %d", r, len(row), cols))
		}
		data = append(data, row...)
	}
	return &Image{rows: rows, cols: cols, data: data}, nil
}

// Rows returns the number of rows
func (im *Image) Rows() int { return im.rows }

// Cols returns the number of columns
func (im *Image) Cols() int { return im.cols }

// At returns the intensity at (r, c). NaN means the pixel is invalid.
func (im *Image) At(r, c int) float64 {
	return im.data[r*im.cols+c]
}

// ValidCount returns the number of non-NaN cells
func (im *Image) ValidCount() int {
	count := 0
	for _, v := range im.data {
		if !math.IsNaN(v) {
			count++
		}
	}
	return count
}

// SubImage is a fixed-size rectangular view into a parent image. Its
// identity is the (date, tile index) pair of the aggregation that produced
// it; the view itself is transient.
type SubImage struct {
	Index     int // row-major tile index within the tile grid
	Row, Col  int // tile grid position
	OriginRow int // top-left cell of the view in the parent
	OriginCol int
	rows      int
	cols      int
	parent    *Image
}

// Rows returns the number of rows in the view
func (s SubImage) Rows() int { return s.rows }

// Cols returns the number of columns in the view
func (s SubImage) Cols() int { return s.cols }

// At returns the intensity at (r, c) relative to the view origin
func (s SubImage) At(r, c int) float64 {
	return s.parent.At(s.OriginRow+r, s.OriginCol+c)
}

// ValidValues collects the non-NaN intensities of the view. An empty
// result means every pixel of the tile was cloud-masked.
func (s SubImage) ValidValues() []float64 {
	values := make([]float64, 0, s.rows*s.cols)
	for r := 0; r < s.rows; r++ {
		for c := 0; c < s.cols; c++ {
			if v := s.At(r, c); !math.IsNaN(v) {
				values = append(values, v)
			}
		}
	}
	return values
}
