package resilience

import (
	"fmt"

	"goveg/domain/core"
)

// IndicatorSource selects which processed series feeds the early-warning
// indicators.
type IndicatorSource string

const (
	SourceResidual       IndicatorSource = "residual"
	SourceDeseasonalized IndicatorSource = "deseasonalized"
	SourceSmoothed       IndicatorSource = "smoothed"
)

// AnalysisParams carries every tuning knob of the series pipeline. All
// parameters travel explicitly so two runs with equal params and equal
// input are bit-for-bit reproducible.
type AnalysisParams struct {
	OutlierSigmas        float64         `json:"outlier_sigmas"`
	OutlierWindow        int             `json:"outlier_window"` // 0 = whole series
	ResampleDays         int             `json:"resample_days"`
	SmoothingFraction    float64         `json:"smoothing_fraction"`
	IndicatorWindow      int             `json:"indicator_window"`
	IndicatorSource      IndicatorSource `json:"indicator_source"`
	SignificanceLevel    float64         `json:"significance_level"`
	SurrogateCount       int             `json:"surrogate_count"`
	SensitivityWindows   []int           `json:"sensitivity_windows,omitempty"`
	SensitivityFractions []float64       `json:"sensitivity_fractions,omitempty"`
	Seed                 int64           `json:"seed"`
}

// DefaultParams returns the standard parameterization. The resample
// interval matches the original archive's thirty-day compositing period.
func DefaultParams() AnalysisParams {
	return AnalysisParams{
		OutlierSigmas:        3.0,
		OutlierWindow:        0,
		ResampleDays:         30,
		SmoothingFraction:    0.2,
		IndicatorWindow:      15,
		IndicatorSource:      SourceResidual,
		SignificanceLevel:    0.05,
		SurrogateCount:       200,
		SensitivityWindows:   []int{10, 15, 20},
		SensitivityFractions: []float64{0.15, 0.2, 0.3},
		Seed:                 42,
	}
}

// Validate checks every knob before any processing starts
func (p AnalysisParams) Validate() error {
	if p.OutlierSigmas <= 0 {
		return core.NewConfigError("outlier_sigmas", "must be positive")
	}
	if p.OutlierWindow < 0 {
		return core.NewConfigError("outlier_window", "must be zero or positive")
	}
	if p.ResampleDays <= 0 {
		return core.NewConfigError("resample_days", "must be positive")
	}
	if p.SmoothingFraction <= 0 || p.SmoothingFraction > 1 {
		return core.NewConfigError("smoothing_fraction", "must be in (0, 1]")
	}
	if p.IndicatorWindow < 2 {
		return core.NewConfigError("indicator_window", "must be at least 2")
	}
	switch p.IndicatorSource {
	case SourceResidual, SourceDeseasonalized, SourceSmoothed:
	default:
		return core.NewConfigError("indicator_source", fmt.Sprintf("unknown source %q", p.IndicatorSource))
	}
	if p.SignificanceLevel <= 0 || p.SignificanceLevel >= 1 {
		return core.NewConfigError("significance_level", "must be in (0, 1)")
	}
	if p.SurrogateCount < 0 {
		return core.NewConfigError("surrogate_count", "must be zero or positive")
	}
	for _, w := range p.SensitivityWindows {
		if w < 2 {
			return core.NewConfigError("sensitivity_windows", "window widths must be at least 2")
		}
	}
	for _, f := range p.SensitivityFractions {
		if f <= 0 || f > 1 {
			return core.NewConfigError("sensitivity_fractions", "fractions must be in (0, 1]")
		}
	}
	return nil
}

// Hash fingerprints the parameter set deterministically
func (p AnalysisParams) Hash() core.ParamsHash {
	return core.ComputeParamsHash(map[string]interface{}{
		"outlier_sigmas":        p.OutlierSigmas,
		"outlier_window":        p.OutlierWindow,
		"resample_days":         p.ResampleDays,
		"smoothing_fraction":    p.SmoothingFraction,
		"indicator_window":      p.IndicatorWindow,
		"indicator_source":      string(p.IndicatorSource),
		"significance_level":    p.SignificanceLevel,
		"surrogate_count":       p.SurrogateCount,
		"sensitivity_windows":   fmt.Sprintf("%v", p.SensitivityWindows),
		"sensitivity_fractions": fmt.Sprintf("%v", p.SensitivityFractions),
		"seed":                  p.Seed,
	})
}
