package app

import (
	"context"
	"fmt"
	"time"

	"goveg/adapters/stats/ewi"
	"goveg/adapters/stats/preprocess"
	"goveg/adapters/stats/smooth"
	"goveg/adapters/stats/trend"
	"goveg/domain/core"
	"goveg/domain/resilience"
	"goveg/domain/series"
	"goveg/domain/stage"
	"goveg/internal/log"
	"goveg/ports"
)

// StageRunner executes a stage plan over one variable's raw series
type StageRunner struct {
	ledgerPort ports.LedgerWriterPort
	rngPort    ports.RNGPort
}

// NewStageRunner creates a new stage runner
func NewStageRunner(ledgerPort ports.LedgerWriterPort, rngPort ports.RNGPort) *StageRunner {
	return &StageRunner{
		ledgerPort: ledgerPort,
		rngPort:    rngPort,
	}
}

// StageRequest specifies one variable pipeline execution
type StageRequest struct {
	RunID    core.RunID
	Variable core.VariableKey
	Raw      series.TimeSeries
	Plan     *stage.StagePlan
	Params   resilience.AnalysisParams
}

// PlanFromParams builds the canonical five-stage plan, with each stage's
// config mirroring the parameter set so the plan hash covers every knob.
func PlanFromParams(p resilience.AnalysisParams) *stage.StagePlan {
	return stage.NewStagePlan([]stage.StageSpec{
		{Name: stage.StagePreprocess, Kind: stage.StageKindTransform, Config: map[string]interface{}{
			"sigmas":        p.OutlierSigmas,
			"window":        p.OutlierWindow,
			"interval_days": p.ResampleDays,
		}},
		{Name: stage.StageSmooth, Kind: stage.StageKindTransform, Config: map[string]interface{}{
			"fraction": p.SmoothingFraction,
		}},
		{Name: stage.StageDeseasonalize, Kind: stage.StageKindTransform, Config: nil},
		{Name: stage.StageIndicators, Kind: stage.StageKindInference, Config: map[string]interface{}{
			"window": p.IndicatorWindow,
			"source": string(p.IndicatorSource),
		}},
		{Name: stage.StageTrend, Kind: stage.StageKindInference, Config: map[string]interface{}{
			"alpha":      p.SignificanceLevel,
			"surrogates": p.SurrogateCount,
		}},
	})
}

// Run executes the plan stage by stage. Transform stages fill in the
// processed series; inference stages compute indicators and trend
// verdicts. The first failing stage aborts the pipeline and its error is
// returned alongside the partial result.
func (r *StageRunner) Run(ctx context.Context, req StageRequest) (*stage.PipelineResult, *resilience.VariableAnalysis, error) {
	if err := req.Plan.Validate(); err != nil {
		return nil, nil, err
	}
	if err := req.Params.Validate(); err != nil {
		return nil, nil, err
	}

	result := stage.NewPipelineResult(req.Plan)
	analysis := &resilience.VariableAnalysis{Variable: req.Variable, Raw: req.Raw}

	for _, spec := range req.Plan.Stages {
		started := time.Now()
		sr := stage.StageResult{
			StageName: spec.Name,
			Audit: stage.StageExecutionAudit{
				StageName:  spec.Name,
				RunID:      req.RunID,
				Variable:   req.Variable,
				Seed:       req.Params.Seed,
				ExecutedAt: core.Now(),
			},
		}

		metrics, err := r.runStage(ctx, spec.Name, req, analysis, &sr)
		sr.Duration = time.Since(started).Milliseconds()
		metrics.DurationMs = sr.Duration
		sr.Metrics = metrics

		if err != nil {
			sr.Success = false
			sr.Error = err.Error()
			result.AddResult(sr)
			log.Warnw("stage failed", "run_id", req.RunID, "variable", req.Variable, "stage", spec.Name, "error", err)
			return result, analysis, err
		}

		sr.Success = true
		result.AddResult(sr)
	}

	artifact := core.Artifact{
		ID:        core.NewID(),
		Kind:      core.ArtifactProcessedSeries,
		Payload:   analysis,
		CreatedAt: core.Now(),
	}
	if err := r.ledgerPort.StoreArtifact(ctx, req.RunID, artifact); err != nil {
		return result, analysis, fmt.Errorf("failed to store processed series: %w", err)
	}
	if n := len(result.Results); n > 0 {
		last := &result.Results[n-1]
		last.Artifacts = append(last.Artifacts, artifact)
		last.Audit.ArtifactsWritten++
		result.Overall.ArtifactsCount++
	}

	analysis.Pipeline = result
	return result, analysis, nil
}

// runStage dispatches one stage against the evolving analysis state
func (r *StageRunner) runStage(ctx context.Context, name stage.StageName, req StageRequest, analysis *resilience.VariableAnalysis, sr *stage.StageResult) (stage.StageMetrics, error) {
	p := req.Params

	switch name {
	case stage.StagePreprocess:
		resampled, pruned, err := preprocess.Preprocess(req.Raw, p.OutlierSigmas, p.OutlierWindow, p.ResampleDays)
		if err != nil {
			return stage.StageMetrics{PointsIn: req.Raw.Len()}, err
		}
		analysis.Resampled = resampled
		analysis.OutliersPruned = pruned
		if pruned > 0 {
			sr.Audit.SkipsByReason = map[string]int{"outlier": pruned}
		}
		return stage.StageMetrics{PointsIn: req.Raw.Len(), PointsOut: resampled.Len()}, nil

	case stage.StageSmooth:
		if analysis.Resampled.Len() == 0 {
			return stage.StageMetrics{}, core.NewConfigError("stage_plan", "smooth requires preprocess")
		}
		smoothed, residual, err := smooth.Loess(analysis.Resampled, p.SmoothingFraction)
		if err != nil {
			return stage.StageMetrics{PointsIn: analysis.Resampled.Len()}, err
		}
		analysis.Smoothed = smoothed
		analysis.Residual = residual
		return stage.StageMetrics{PointsIn: analysis.Resampled.Len(), PointsOut: smoothed.Len()}, nil

	case stage.StageDeseasonalize:
		if analysis.Resampled.Len() == 0 {
			return stage.StageMetrics{}, core.NewConfigError("stage_plan", "deseasonalize requires preprocess")
		}
		diffed, err := ewi.FirstDifference(analysis.Resampled)
		if err != nil {
			return stage.StageMetrics{PointsIn: analysis.Resampled.Len()}, err
		}
		analysis.Deseasonalized = diffed
		return stage.StageMetrics{PointsIn: analysis.Resampled.Len(), PointsOut: diffed.Len()}, nil

	case stage.StageIndicators:
		source, err := indicatorSource(analysis, p.IndicatorSource)
		if err != nil {
			return stage.StageMetrics{}, err
		}
		indicators, err := ewi.Rolling(source, p.IndicatorWindow)
		if err != nil {
			return stage.StageMetrics{PointsIn: source.Len()}, err
		}
		analysis.Indicators = indicators

		whole, err := ewi.Estimate(source)
		if err != nil {
			return stage.StageMetrics{PointsIn: source.Len()}, err
		}
		analysis.AR1Whole = whole

		phi := whole.Phi
		return stage.StageMetrics{PointsIn: source.Len(), PointsOut: indicators.Len(), AR1: &phi}, nil

	case stage.StageTrend:
		return r.runTrendStage(ctx, req, analysis, sr)

	default:
		return stage.StageMetrics{}, core.NewConfigError("stage", "unknown stage name: "+string(name))
	}
}

// runTrendStage evaluates both indicators, attaches the seeded surrogate
// fraction, and reruns the smoothing and indicator stages across the
// sensitivity grid.
func (r *StageRunner) runTrendStage(ctx context.Context, req StageRequest, analysis *resilience.VariableAnalysis, sr *stage.StageResult) (stage.StageMetrics, error) {
	if analysis.Indicators.Len() == 0 {
		return stage.StageMetrics{}, core.NewConfigError("stage_plan", "trend requires indicators")
	}
	p := req.Params

	metrics := stage.StageMetrics{PointsIn: analysis.Indicators.Len()}
	for _, indicator := range []string{resilience.IndicatorAR1, resilience.IndicatorStdDev} {
		ts, _ := analysis.Indicators.Series(indicator)

		tr, err := trend.Evaluate(req.Variable, indicator, ts, p.SignificanceLevel)
		if err != nil {
			return metrics, err
		}

		if p.SurrogateCount > 0 {
			rng, err := r.rngPort.Stream(ctx, req.RunID.String(), string(stage.StageTrend),
				fmt.Sprintf("%s/%s", req.Variable, indicator), p.Seed)
			if err != nil {
				return metrics, err
			}
			fraction, err := trend.SurrogateTest(ts, tr.Tau, p.SurrogateCount, rng)
			if err != nil {
				return metrics, err
			}
			tr.SurrogateCount = p.SurrogateCount
			tr.SurrogateFraction = fraction
		} else {
			sr.Audit.Warnings = append(sr.Audit.Warnings, "surrogate test disabled for "+indicator)
		}

		cells, agreement, err := r.sensitivityGrid(analysis, indicator, tr.Tau, p)
		if err != nil {
			return metrics, err
		}
		tr.Sensitivity = cells
		tr.SensitivityAgreement = agreement

		analysis.Trends = append(analysis.Trends, tr)
		if indicator == resilience.IndicatorAR1 {
			tau, pv := tr.Tau, tr.PValue
			metrics.Tau = &tau
			metrics.PValue = &pv
		}
	}

	metrics.PointsOut = len(analysis.Trends)
	return metrics, nil
}

// sensitivityGrid recomputes the indicator trend across alternate window
// widths and smoothing fractions on the already-cleaned series, and
// reports the fraction of reruns whose tau sign matches the observed one.
// Grid cells that fail for lack of data are skipped, not fatal.
func (r *StageRunner) sensitivityGrid(analysis *resilience.VariableAnalysis, indicator string, observedTau float64, p resilience.AnalysisParams) ([]resilience.SensitivityCell, float64, error) {
	if len(p.SensitivityWindows) == 0 || len(p.SensitivityFractions) == 0 {
		return nil, 0, nil
	}

	var cells []resilience.SensitivityCell
	agreeing := 0
	for _, window := range p.SensitivityWindows {
		for _, fraction := range p.SensitivityFractions {
			smoothed, residual, err := smooth.Loess(analysis.Resampled, fraction)
			if err != nil {
				if core.IsInsufficientDataError(err) {
					continue
				}
				return nil, 0, err
			}

			var source series.TimeSeries
			switch p.IndicatorSource {
			case resilience.SourceSmoothed:
				source = smoothed
			case resilience.SourceDeseasonalized:
				source = analysis.Deseasonalized
			default:
				source = residual
			}

			indicators, err := ewi.Rolling(source, window)
			if err != nil {
				if core.IsInsufficientDataError(err) {
					continue
				}
				return nil, 0, err
			}

			ts, _ := indicators.Series(indicator)
			tau, pValue, err := trend.Tau(ts)
			if err != nil {
				if core.IsInsufficientDataError(err) {
					continue
				}
				return nil, 0, err
			}

			cells = append(cells, resilience.SensitivityCell{
				Window:   window,
				Fraction: fraction,
				Tau:      tau,
				PValue:   pValue,
			})
			if sameSign(tau, observedTau) {
				agreeing++
			}
		}
	}

	if len(cells) == 0 {
		return nil, 0, nil
	}
	return cells, float64(agreeing) / float64(len(cells)), nil
}

// indicatorSource picks the processed series the indicators run on
func indicatorSource(analysis *resilience.VariableAnalysis, source resilience.IndicatorSource) (series.TimeSeries, error) {
	switch source {
	case resilience.SourceResidual:
		if analysis.Residual.Len() == 0 {
			return series.TimeSeries{}, core.NewConfigError("stage_plan", "indicators on residual require smooth")
		}
		return analysis.Residual, nil
	case resilience.SourceDeseasonalized:
		if analysis.Deseasonalized.Len() == 0 {
			return series.TimeSeries{}, core.NewConfigError("stage_plan", "indicators on deseasonalized require deseasonalize")
		}
		return analysis.Deseasonalized, nil
	case resilience.SourceSmoothed:
		if analysis.Smoothed.Len() == 0 {
			return series.TimeSeries{}, core.NewConfigError("stage_plan", "indicators on smoothed require smooth")
		}
		return analysis.Smoothed, nil
	default:
		return series.TimeSeries{}, core.NewConfigError("indicator_source", fmt.Sprintf("unknown source %q", source))
	}
}

func sameSign(a, b float64) bool {
	if a == 0 && b == 0 {
		return true
	}
	return a*b > 0
}
