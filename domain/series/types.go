package series

import (
	"fmt"
	"sort"

	"goveg/domain/core"
)

// Variable keys shared across the engine. Mean variables are analyzable;
// the _std companions carry the spread across sub-images for the same
// date and are reported, not analyzed.
const (
	VarCentrality    core.VariableKey = "centrality"
	VarCentralityStd core.VariableKey = "centrality_std"
	VarOffset50      core.VariableKey = "offset50"
	VarOffset50Std   core.VariableKey = "offset50_std"
	VarNDVI          core.VariableKey = "ndvi"
	VarNDVIStd       core.VariableKey = "ndvi_std"
	VarPrecipitation core.VariableKey = "precipitation"
	VarTemperature   core.VariableKey = "temperature"
)

// AnalyzableVariables lists the variables the analysis pipeline runs on.
func AnalyzableVariables() []core.VariableKey {
	return []core.VariableKey{VarCentrality, VarOffset50, VarNDVI, VarPrecipitation}
}

// Point is one dated observation.
type Point struct {
	Date  core.Date `json:"date"`
	Value float64   `json:"value"`
}

// TimeSeries is an ordered sequence of observations for one variable.
// Dates are strictly increasing. Gaps are permitted before resampling and
// forbidden after.
type TimeSeries struct {
	Variable core.VariableKey `json:"variable"`
	Points   []Point          `json:"points"`
}

// NewTimeSeries sorts the points by date and validates uniqueness, so
// observations may arrive in any completion order.
func NewTimeSeries(variable core.VariableKey, points []Point) (TimeSeries, error) {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Date.Equal(sorted[i-1].Date) {
			return TimeSeries{}, fmt.Errorf("duplicate date %s in series %s", sorted[i].Date, variable)
		}
	}
	return TimeSeries{Variable: variable, Points: sorted}, nil
}

// Len returns the number of observations
func (ts TimeSeries) Len() int { return len(ts.Points) }

// Values returns the observation values in date order
func (ts TimeSeries) Values() []float64 {
	values := make([]float64, len(ts.Points))
	for i, p := range ts.Points {
		values[i] = p.Value
	}
	return values
}

// Dates returns the observation dates in order
func (ts TimeSeries) Dates() []core.Date {
	dates := make([]core.Date, len(ts.Points))
	for i, p := range ts.Points {
		dates[i] = p.Date
	}
	return dates
}

// Slice returns the observations with from <= date <= to
func (ts TimeSeries) Slice(from, to core.Date) TimeSeries {
	var points []Point
	for _, p := range ts.Points {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		points = append(points, p)
	}
	return TimeSeries{Variable: ts.Variable, Points: points}
}

// Validate checks the strictly-increasing date invariant
func (ts TimeSeries) Validate() error {
	for i := 1; i < len(ts.Points); i++ {
		if !ts.Points[i-1].Date.Before(ts.Points[i].Date) {
			return fmt.Errorf("series %s: dates not strictly increasing at index %d", ts.Variable, i)
		}
	}
	return nil
}

// SubImageRecord holds one tile's metrics for one acquisition date. There
// is exactly one record per (date, tile index) pair.
type SubImageRecord struct {
	Date              core.Date `json:"date"`
	TileIndex         int       `json:"tile_index"`
	TileRow           int       `json:"tile_row"`
	TileCol           int       `json:"tile_col"`
	MeanIntensity     float64   `json:"mean_intensity"`
	Centrality        float64   `json:"centrality"`
	Offset50          float64   `json:"offset50"`
	VegetatedFraction float64   `json:"vegetated_fraction"`
}

// DateRecord is the reduction across all valid tiles of one date. Std
// fields mirror the original archive's companion columns (offset50_std
// and friends); climate values are merged in from the independently
// supplied weather series and stay nil until then.
type DateRecord struct {
	Date           core.Date `json:"date"`
	MeanCentrality float64   `json:"mean_centrality"`
	StdCentrality  float64   `json:"std_centrality"`
	MeanOffset50   float64   `json:"mean_offset50"`
	StdOffset50    float64   `json:"std_offset50"`
	MeanIntensity  float64   `json:"mean_intensity"`
	StdIntensity   float64   `json:"std_intensity"`
	ValidTiles     int       `json:"valid_tiles"`
	TotalTiles     int       `json:"total_tiles"`
	Precipitation  *float64  `json:"precipitation,omitempty"`
	Temperature    *float64  `json:"temperature,omitempty"`
}

// Climate carries the scalar weather values for one date.
type Climate struct {
	Precipitation float64 `json:"precipitation"`
	Temperature   float64 `json:"temperature"`
}

// SkippedDate records why an acquisition date was excluded from a run.
type SkippedDate struct {
	Date   core.Date `json:"date"`
	Reason string    `json:"reason"`
}
