package app_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"goveg/app"
	"goveg/domain/core"
	"goveg/domain/resilience"
	"goveg/domain/series"
	"goveg/domain/stage"
	"goveg/internal/testkit"
)

// pipelineParams shrinks the default surrogate and sensitivity load so
// pipeline tests stay fast.
func pipelineParams() resilience.AnalysisParams {
	params := resilience.DefaultParams()
	params.SurrogateCount = 20
	params.SensitivityWindows = []int{10, 15}
	params.SensitivityFractions = []float64{0.2, 0.3}
	return params
}

// declineSeries generates n monthly centrality observations with an
// annual cycle and a downward trend.
func declineSeries(n int) series.TimeSeries {
	return testkit.SeasonalSeries(series.VarCentrality, core.NewDate(2016, time.January, 1),
		n, 30, 0.6, 0.08, -0.05, 0.01, rand.New(rand.NewSource(7)))
}

// TestStageRunnerFullPipeline verifies all five stages execute in plan
// order, every processed form of the series is populated, and the
// processed series lands in the ledger.
func TestStageRunnerFullPipeline(t *testing.T) {
	kit := testkit.NewTestKit()
	params := pipelineParams()
	runID := core.RunID("run-pipeline")

	result, analysis, err := kit.StageRunner().Run(context.Background(), app.StageRequest{
		RunID:    runID,
		Variable: series.VarCentrality,
		Raw:      declineSeries(48),
		Plan:     app.PlanFromParams(params),
		Params:   params,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.Success() || result.Overall.Successful != 5 {
		t.Fatalf("Expected 5 successful stages, got %d successful and %d failed",
			result.Overall.Successful, result.Overall.Failed)
	}
	expectedOrder := []stage.StageName{stage.StagePreprocess, stage.StageSmooth,
		stage.StageDeseasonalize, stage.StageIndicators, stage.StageTrend}
	for i, name := range expectedOrder {
		if result.Results[i].StageName != name {
			t.Errorf("Expected stage %s at position %d, got %s", name, i, result.Results[i].StageName)
		}
	}

	if analysis.Resampled.Len() == 0 {
		t.Fatal("Expected a resampled series")
	}
	if analysis.Smoothed.Len() != analysis.Resampled.Len() || analysis.Residual.Len() != analysis.Resampled.Len() {
		t.Errorf("Expected smoothed and residual on the resampled grid of %d points, got %d and %d",
			analysis.Resampled.Len(), analysis.Smoothed.Len(), analysis.Residual.Len())
	}
	if analysis.Deseasonalized.Len() != analysis.Resampled.Len()-1 {
		t.Errorf("Expected %d differenced points, got %d", analysis.Resampled.Len()-1, analysis.Deseasonalized.Len())
	}
	expectedWindows := analysis.Residual.Len() - params.IndicatorWindow + 1
	if analysis.Indicators.Len() != expectedWindows {
		t.Errorf("Expected %d indicator positions, got %d", expectedWindows, analysis.Indicators.Len())
	}
	if analysis.AR1Whole.N != analysis.Residual.Len() {
		t.Errorf("Expected whole-series AR1 over %d points, got %d", analysis.Residual.Len(), analysis.AR1Whole.N)
	}

	if len(analysis.Trends) != 2 {
		t.Fatalf("Expected trend verdicts for both indicators, got %d", len(analysis.Trends))
	}
	for _, indicator := range []string{resilience.IndicatorAR1, resilience.IndicatorStdDev} {
		tr, ok := analysis.Trend(indicator)
		if !ok {
			t.Fatalf("Expected a %s trend verdict", indicator)
		}
		if tr.N != analysis.Indicators.Len() {
			t.Errorf("Expected the %s trend over %d points, got %d", indicator, analysis.Indicators.Len(), tr.N)
		}
		if tr.SurrogateCount != params.SurrogateCount {
			t.Errorf("Expected %d surrogates for %s, got %d", params.SurrogateCount, indicator, tr.SurrogateCount)
		}
		if tr.SurrogateFraction < 0 || tr.SurrogateFraction > 1 {
			t.Errorf("Expected surrogate fraction in [0,1] for %s, got %v", indicator, tr.SurrogateFraction)
		}
		if len(tr.Sensitivity) != 4 {
			t.Errorf("Expected 4 sensitivity cells for %s, got %d", indicator, len(tr.Sensitivity))
		}
		if tr.SensitivityAgreement < 0 || tr.SensitivityAgreement > 1 {
			t.Errorf("Expected sensitivity agreement in [0,1] for %s, got %v", indicator, tr.SensitivityAgreement)
		}
	}

	if analysis.Pipeline == nil {
		t.Error("Expected the pipeline result attached to the analysis")
	}

	artifacts, err := kit.LedgerAdapter().GetArtifactsByRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetArtifactsByRun failed: %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Kind != core.ArtifactProcessedSeries {
		t.Fatalf("Expected one processed series artifact, got %d", len(artifacts))
	}
	if result.Overall.ArtifactsCount != 1 {
		t.Errorf("Expected the artifact counted in the summary, got %d", result.Overall.ArtifactsCount)
	}
}

// TestStageRunnerDeterministicSurrogates verifies two executions with
// the same run scope draw identical surrogate fractions.
func TestStageRunnerDeterministicSurrogates(t *testing.T) {
	params := pipelineParams()
	raw := declineSeries(48)

	run := func() *resilience.VariableAnalysis {
		kit := testkit.NewTestKit()
		_, analysis, err := kit.StageRunner().Run(context.Background(), app.StageRequest{
			RunID:    core.RunID("run-replay"),
			Variable: series.VarCentrality,
			Raw:      raw,
			Plan:     app.PlanFromParams(params),
			Params:   params,
		})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		return analysis
	}

	first, second := run(), run()
	if len(first.Trends) != len(second.Trends) {
		t.Fatalf("Expected matching trend counts, got %d and %d", len(first.Trends), len(second.Trends))
	}
	for i := range first.Trends {
		if first.Trends[i].Tau != second.Trends[i].Tau {
			t.Errorf("Expected identical tau for %s, got %v and %v",
				first.Trends[i].Indicator, first.Trends[i].Tau, second.Trends[i].Tau)
		}
		if first.Trends[i].SurrogateFraction != second.Trends[i].SurrogateFraction {
			t.Errorf("Expected identical surrogate fraction for %s, got %v and %v",
				first.Trends[i].Indicator, first.Trends[i].SurrogateFraction, second.Trends[i].SurrogateFraction)
		}
	}
}

// TestStageRunnerAbortsOnShortSeries verifies the indicator stage fails
// for a series shorter than its window, the partial result records the
// failure, and nothing is written to the ledger.
func TestStageRunnerAbortsOnShortSeries(t *testing.T) {
	kit := testkit.NewTestKit()
	params := pipelineParams()
	runID := core.RunID("run-short")

	result, analysis, err := kit.StageRunner().Run(context.Background(), app.StageRequest{
		RunID:    runID,
		Variable: series.VarCentrality,
		Raw:      declineSeries(8),
		Plan:     app.PlanFromParams(params),
		Params:   params,
	})
	if !core.IsInsufficientDataError(err) {
		t.Fatalf("Expected insufficient data error, got %v", err)
	}
	if result == nil || analysis == nil {
		t.Fatal("Expected the partial result alongside the error")
	}

	if result.Success() || result.Overall.Failed != 1 {
		t.Errorf("Expected exactly one failed stage, got %d", result.Overall.Failed)
	}
	last := result.Results[len(result.Results)-1]
	if last.StageName != stage.StageIndicators || last.Success {
		t.Errorf("Expected the indicator stage to fail, got %s success=%v", last.StageName, last.Success)
	}
	if last.Error == "" {
		t.Error("Expected the stage error recorded")
	}
	if analysis.Indicators.Len() != 0 {
		t.Errorf("Expected no indicators, got %d", analysis.Indicators.Len())
	}

	artifacts, err := kit.LedgerAdapter().GetArtifactsByRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetArtifactsByRun failed: %v", err)
	}
	if len(artifacts) != 0 {
		t.Errorf("Expected no artifacts for an aborted pipeline, got %d", len(artifacts))
	}
}

// TestStageRunnerValidatesRequest verifies plan and parameter validation
// run before any stage executes.
func TestStageRunnerValidatesRequest(t *testing.T) {
	kit := testkit.NewTestKit()
	params := pipelineParams()

	badPlan := stage.NewStagePlan([]stage.StageSpec{{Name: "warp", Kind: stage.StageKindTransform}})
	if _, _, err := kit.StageRunner().Run(context.Background(), app.StageRequest{
		RunID:    "run-bad-plan",
		Variable: series.VarCentrality,
		Raw:      declineSeries(48),
		Plan:     badPlan,
		Params:   params,
	}); !core.IsConfigError(err) {
		t.Errorf("Expected configuration error for an unknown stage, got %v", err)
	}

	badParams := params
	badParams.IndicatorWindow = 1
	if _, _, err := kit.StageRunner().Run(context.Background(), app.StageRequest{
		RunID:    "run-bad-params",
		Variable: series.VarCentrality,
		Raw:      declineSeries(48),
		Plan:     app.PlanFromParams(params),
		Params:   badParams,
	}); !core.IsConfigError(err) {
		t.Errorf("Expected configuration error for a one-point window, got %v", err)
	}
}

// TestPlanFromParamsHashCoversKnobs verifies the plan hash is stable for
// identical parameters and moves when any stage knob changes.
func TestPlanFromParamsHashCoversKnobs(t *testing.T) {
	params := pipelineParams()

	plan := app.PlanFromParams(params)
	if err := plan.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(plan.Stages) != 5 {
		t.Fatalf("Expected 5 stages, got %d", len(plan.Stages))
	}
	if plan.Hash() != app.PlanFromParams(params).Hash() {
		t.Error("Expected identical parameters to hash identically")
	}

	changed := params
	changed.IndicatorWindow++
	if plan.Hash() == app.PlanFromParams(changed).Hash() {
		t.Error("Expected the indicator window to move the plan hash")
	}

	changed = params
	changed.SmoothingFraction = 0.4
	if plan.Hash() == app.PlanFromParams(changed).Hash() {
		t.Error("Expected the smoothing fraction to move the plan hash")
	}
}
