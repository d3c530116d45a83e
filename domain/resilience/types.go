package resilience

import (
	"sort"

	"goveg/domain/core"
	"goveg/domain/series"
	"goveg/domain/stage"
)

// Indicator names used in trend results
const (
	IndicatorAR1    = "ar1"
	IndicatorStdDev = "stddev"
)

// IndicatorSeries holds the moving-window early-warning indicators. All
// slices share length n-w+1 for an input of n points; Dates carry the
// trailing edge of each window so an indicator value never depends on
// observations after its own timestamp.
type IndicatorSeries struct {
	Window int         `json:"window"`
	Dates  []core.Date `json:"dates"`
	AR1    []float64   `json:"ar1"`
	StdDev []float64   `json:"stddev"`
}

// Len returns the number of window positions
func (s IndicatorSeries) Len() int { return len(s.Dates) }

// Series converts one indicator vector to a plottable TimeSeries
func (s IndicatorSeries) Series(indicator string) (series.TimeSeries, bool) {
	var values []float64
	switch indicator {
	case IndicatorAR1:
		values = s.AR1
	case IndicatorStdDev:
		values = s.StdDev
	default:
		return series.TimeSeries{}, false
	}
	points := make([]series.Point, len(values))
	for i := range values {
		points[i] = series.Point{Date: s.Dates[i], Value: values[i]}
	}
	return series.TimeSeries{Variable: core.VariableKey(indicator), Points: points}, true
}

// AR1Estimate is the whole-series lag-1 autocorrelation with its
// large-sample standard error.
type AR1Estimate struct {
	Phi    float64 `json:"phi"`
	StdErr float64 `json:"std_err"`
	N      int     `json:"n"`
}

// SensitivityCell records one rerun of the smoothing and indicator stages
// under alternate parameters.
type SensitivityCell struct {
	Window   int     `json:"window"`
	Fraction float64 `json:"fraction"`
	Tau      float64 `json:"tau"`
	PValue   float64 `json:"p_value"`
}

// TrendResult is the significance verdict for one indicator of one
// variable. Tau is bounded to [-1, 1]; SurrogateFraction is the share of
// seeded surrogates whose |tau| reaches the observed one, and
// SensitivityAgreement the share of grid reruns matching the observed tau
// sign.
type TrendResult struct {
	Variable             core.VariableKey  `json:"variable"`
	Indicator            string            `json:"indicator"`
	Tau                  float64           `json:"tau"`
	PValue               float64           `json:"p_value"`
	Significant          bool              `json:"significant"`
	SurrogateCount       int               `json:"surrogate_count"`
	SurrogateFraction    float64           `json:"surrogate_fraction"`
	SensitivityAgreement float64           `json:"sensitivity_agreement"`
	Sensitivity          []SensitivityCell `json:"sensitivity,omitempty"`
	N                    int               `json:"n"`
}

// VariableAnalysis bundles every processed form of one variable's series
// together with its indicator and trend outputs.
type VariableAnalysis struct {
	Variable       core.VariableKey       `json:"variable"`
	Raw            series.TimeSeries      `json:"raw"`
	Resampled      series.TimeSeries      `json:"resampled"`
	Smoothed       series.TimeSeries      `json:"smoothed"`
	Residual       series.TimeSeries      `json:"residual"`
	Deseasonalized series.TimeSeries      `json:"deseasonalized"`
	Indicators     IndicatorSeries        `json:"indicators"`
	AR1Whole       AR1Estimate            `json:"ar1_whole"`
	Trends         []TrendResult          `json:"trends"`
	Pipeline       *stage.PipelineResult  `json:"pipeline,omitempty"`
	OutliersPruned int                    `json:"outliers_pruned"`
	Notes          map[string]interface{} `json:"notes,omitempty"`
}

// Trend returns the result for one indicator name
func (v *VariableAnalysis) Trend(indicator string) (TrendResult, bool) {
	for _, tr := range v.Trends {
		if tr.Indicator == indicator {
			return tr, true
		}
	}
	return TrendResult{}, false
}

// AnalysisResult is the full outcome of one run over one site's archive
type AnalysisResult struct {
	RunID       core.RunID            `json:"run_id"`
	Site        core.SiteID           `json:"site"`
	Params      AnalysisParams        `json:"params"`
	ParamsHash  core.ParamsHash       `json:"params_hash"`
	SeriesHash  core.SeriesHash       `json:"series_hash"`
	PlanHash    core.PlanHash         `json:"plan_hash"`
	Variables   []*VariableAnalysis   `json:"variables"`
	Skipped     []series.SkippedDate  `json:"skipped,omitempty"`
	StartedAt   core.Timestamp        `json:"started_at"`
	CompletedAt core.Timestamp        `json:"completed_at"`
}

// Variable returns the analysis for one variable key
func (r *AnalysisResult) Variable(key core.VariableKey) (*VariableAnalysis, bool) {
	for _, v := range r.Variables {
		if v.Variable == key {
			return v, true
		}
	}
	return nil, false
}

// SortVariables orders the per-variable analyses by key so serialized
// results are stable across completion orders.
func (r *AnalysisResult) SortVariables() {
	sort.Slice(r.Variables, func(i, j int) bool {
		return r.Variables[i].Variable < r.Variables[j].Variable
	})
}

// ToArtifact converts the result to a ledger artifact
func (r *AnalysisResult) ToArtifact() core.Artifact {
	return core.Artifact{
		ID:        core.NewID(),
		Kind:      core.ArtifactAnalysisResult,
		Payload:   r,
		CreatedAt: core.Now(),
	}
}
