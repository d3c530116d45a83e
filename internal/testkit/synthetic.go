package testkit

import (
	"math"
	"math/rand"

	"goveg/domain/core"
	"goveg/domain/raster"
	"goveg/domain/series"
)

// Synthetic fixtures for pipeline tests. Images are built as grids and
// sealed through the raster constructors; series are built with strictly
// increasing dates so they satisfy the ordering invariant directly.

func mustImage(grid [][]float64) *raster.Image {
	img, err := raster.FromGrid(grid)
	if err != nil {
		panic(err)
	}
	return img
}

// UniformImage builds an image with every cell at the same intensity
func UniformImage(rows, cols int, value float64) *raster.Image {
	grid := make([][]float64, rows)
	for r := range grid {
		grid[r] = make([]float64, cols)
		for c := range grid[r] {
			grid[r][c] = value
		}
	}
	return mustImage(grid)
}

// StripeImage alternates vertical bands of the given width between high
// and low intensity. Binarizing it yields a connected but elongated mask.
func StripeImage(rows, cols, width int, high, low float64) *raster.Image {
	if width < 1 {
		width = 1
	}
	grid := make([][]float64, rows)
	for r := range grid {
		grid[r] = make([]float64, cols)
		for c := range grid[r] {
			if (c/width)%2 == 0 {
				grid[r][c] = high
			} else {
				grid[r][c] = low
			}
		}
	}
	return mustImage(grid)
}

// CheckerImage alternates square blocks of the given size between high
// and low intensity. Binarizing it yields a fragmented mask.
func CheckerImage(rows, cols, size int, high, low float64) *raster.Image {
	if size < 1 {
		size = 1
	}
	grid := make([][]float64, rows)
	for r := range grid {
		grid[r] = make([]float64, cols)
		for c := range grid[r] {
			if ((r/size)+(c/size))%2 == 0 {
				grid[r][c] = high
			} else {
				grid[r][c] = low
			}
		}
	}
	return mustImage(grid)
}

// QuadrantImage fills the four quadrants with fixed intensities, so each
// tile of a 2x2 tiling sees one uniform value
func QuadrantImage(rows, cols int, topLeft, topRight, bottomLeft, bottomRight float64) *raster.Image {
	grid := make([][]float64, rows)
	for r := range grid {
		grid[r] = make([]float64, cols)
		for c := range grid[r] {
			top := r < rows/2
			left := c < cols/2
			switch {
			case top && left:
				grid[r][c] = topLeft
			case top && !left:
				grid[r][c] = topRight
			case !top && left:
				grid[r][c] = bottomLeft
			default:
				grid[r][c] = bottomRight
			}
		}
	}
	return mustImage(grid)
}

// RandomVegetationImage sets each cell to high with the given probability
// and to low otherwise. The expected vegetated fraction under a threshold
// between low and high equals the probability.
func RandomVegetationImage(rows, cols int, fraction, high, low float64, rng *rand.Rand) *raster.Image {
	if rng == nil {
		rng = rand.New(rand.NewSource(42))
	}
	grid := make([][]float64, rows)
	for r := range grid {
		grid[r] = make([]float64, cols)
		for c := range grid[r] {
			if rng.Float64() < fraction {
				grid[r][c] = high
			} else {
				grid[r][c] = low
			}
		}
	}
	return mustImage(grid)
}

// WithCloudHoles copies an image and masks the given fraction of cells
// with NaN, mimicking upstream cloud removal
func WithCloudHoles(img *raster.Image, fraction float64, rng *rand.Rand) *raster.Image {
	if rng == nil {
		rng = rand.New(rand.NewSource(42))
	}
	grid := make([][]float64, img.Rows())
	for r := range grid {
		grid[r] = make([]float64, img.Cols())
		for c := range grid[r] {
			if rng.Float64() < fraction {
				grid[r][c] = math.NaN()
			} else {
				grid[r][c] = img.At(r, c)
			}
		}
	}
	return mustImage(grid)
}

// SeasonalSeries generates observations with an annual cycle, a linear
// trend per year, and Gaussian noise
func SeasonalSeries(variable core.VariableKey, start core.Date, n, stepDays int,
	mean, amplitude, trendPerYear, noise float64, rng *rand.Rand) series.TimeSeries {

	if rng == nil {
		rng = rand.New(rand.NewSource(42))
	}
	points := make([]series.Point, n)
	for i := 0; i < n; i++ {
		day := float64(i * stepDays)
		value := mean +
			amplitude*math.Sin(2*math.Pi*day/365.0) +
			trendPerYear*day/365.0
		if noise > 0 {
			value += noise * rng.NormFloat64()
		}
		points[i] = series.Point{Date: start.AddDays(i * stepDays), Value: value}
	}
	return series.TimeSeries{Variable: variable, Points: points}
}

// SlowingSeries generates an AR(1) process whose lag-1 coefficient ramps
// from phiStart to phiEnd over the series, the signature of critical
// slowing down. Rolling autocorrelation and variance both rise with it.
func SlowingSeries(variable core.VariableKey, start core.Date, n, stepDays int,
	phiStart, phiEnd, sigma float64, rng *rand.Rand) series.TimeSeries {

	if rng == nil {
		rng = rand.New(rand.NewSource(42))
	}
	points := make([]series.Point, n)
	value := 0.0
	for i := 0; i < n; i++ {
		phi := phiStart
		if n > 1 {
			phi += (phiEnd - phiStart) * float64(i) / float64(n-1)
		}
		value = phi*value + sigma*rng.NormFloat64()
		points[i] = series.Point{Date: start.AddDays(i * stepDays), Value: value}
	}
	return series.TimeSeries{Variable: variable, Points: points}
}

// SeedDecliningArchive fills a fake archive with evenly spaced images
// whose vegetated fraction declines linearly across the date range, plus
// seasonal climate values for every date. The resulting survey series
// carries the decline signal the analysis pipeline is meant to detect.
func SeedDecliningArchive(f *FakeImageryAdapter, site core.SiteID, start core.Date,
	count, stepDays, rows, cols int, fromFraction, toFraction float64, rng *rand.Rand) {

	if rng == nil {
		rng = rand.New(rand.NewSource(42))
	}
	for i := 0; i < count; i++ {
		fraction := fromFraction
		if count > 1 {
			fraction += (toFraction - fromFraction) * float64(i) / float64(count-1)
		}
		date := start.AddDays(i * stepDays)
		f.AddImage(site, date, RandomVegetationImage(rows, cols, fraction, 0.8, 0.05, rng))

		day := float64(i * stepDays)
		f.AddClimate(site, date, series.Climate{
			Precipitation: 45 + 25*math.Sin(2*math.Pi*day/365.0),
			Temperature:   288 + 10*math.Sin(2*math.Pi*day/365.0),
		})
	}
}
