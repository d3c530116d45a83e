package app_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"goveg/app"
	"goveg/domain/core"
	"goveg/domain/series"
	"goveg/internal/testkit"
)

// surveyedSeries builds a survey-shaped MultiSeries with n monthly
// records carrying a declining signal, with climate merged into the
// first climateDates records.
func surveyedSeries(t *testing.T, site core.SiteID, n, climateDates int) *series.MultiSeries {
	t.Helper()
	start := core.NewDate(2016, time.January, 1)
	cent := testkit.SeasonalSeries(series.VarCentrality, start, n, 30, 0.6, 0.08, -0.05, 0.01, rand.New(rand.NewSource(11)))
	ndvi := testkit.SeasonalSeries(series.VarNDVI, start, n, 30, 0.45, 0.1, -0.03, 0.01, rand.New(rand.NewSource(12)))

	builder := series.NewBuilder(site)
	for i := 0; i < n; i++ {
		if err := builder.AddRecord(series.DateRecord{
			Date:           cent.Points[i].Date,
			MeanCentrality: cent.Points[i].Value,
			MeanIntensity:  ndvi.Points[i].Value,
			ValidTiles:     16,
			TotalTiles:     16,
		}); err != nil {
			t.Fatalf("AddRecord failed: %v", err)
		}
		if i < climateDates {
			builder.SetClimate(cent.Points[i].Date, series.Climate{Precipitation: 40, Temperature: 290})
		}
	}
	multi, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return multi
}

// TestRunAnalysisEndToEnd verifies the manifest is persisted, both
// requested variables complete with trend verdicts, and the result
// round-trips through the ledger.
func TestRunAnalysisEndToEnd(t *testing.T) {
	kit := testkit.NewTestKit()
	svc := app.NewAnalysisService(kit.StageRunner(), kit.LedgerAdapter())
	site := core.SiteID("serengeti-east")
	multi := surveyedSeries(t, site, 40, 0)
	params := pipelineParams()

	result, err := svc.RunAnalysis(context.Background(), app.AnalysisRequest{
		Site:        site,
		Multi:       multi,
		Skipped:     []series.SkippedDate{{Date: core.NewDate(2016, time.February, 15), Reason: "image unavailable"}},
		Params:      params,
		Variables:   []core.VariableKey{series.VarCentrality, series.VarNDVI},
		CodeVersion: "0.3.0",
	})
	if err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}

	if result.RunID == "" {
		t.Error("Expected a minted run id")
	}
	if result.Site != site {
		t.Errorf("Expected site %s, got %s", site, result.Site)
	}
	if result.SeriesHash != multi.Fingerprint() {
		t.Error("Expected the series hash to match the input fingerprint")
	}
	if len(result.Variables) != 2 {
		t.Fatalf("Expected 2 variable analyses, got %d", len(result.Variables))
	}
	if result.Variables[0].Variable != series.VarCentrality || result.Variables[1].Variable != series.VarNDVI {
		t.Errorf("Expected variables sorted by key, got %s then %s",
			result.Variables[0].Variable, result.Variables[1].Variable)
	}
	for _, v := range result.Variables {
		if len(v.Trends) != 2 {
			t.Errorf("Expected 2 trend verdicts for %s, got %d", v.Variable, len(v.Trends))
		}
	}
	if len(result.Skipped) != 1 {
		t.Errorf("Expected the survey skip carried into the result, got %d", len(result.Skipped))
	}
	if result.CompletedAt.IsZero() {
		t.Error("Expected a completion timestamp")
	}

	manifest, err := kit.LedgerAdapter().GetRunManifest(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("GetRunManifest failed: %v", err)
	}
	if manifest.SeriesHash != result.SeriesHash || manifest.ParamsHash != result.ParamsHash || manifest.PlanHash != result.PlanHash {
		t.Error("Expected the manifest hashes to match the result")
	}
	if manifest.Seed != params.Seed {
		t.Errorf("Expected seed %d in the manifest, got %d", params.Seed, manifest.Seed)
	}

	artifacts, err := kit.LedgerAdapter().GetArtifactsByRun(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("GetArtifactsByRun failed: %v", err)
	}
	kinds := make(map[core.ArtifactKind]int)
	for _, artifact := range artifacts {
		kinds[artifact.Kind]++
	}
	if kinds[core.ArtifactRunManifest] != 1 || kinds[core.ArtifactProcessedSeries] != 2 || kinds[core.ArtifactAnalysisResult] != 1 {
		t.Errorf("Expected 1 manifest, 2 processed series, and 1 result, got %v", kinds)
	}
}

// TestRunAnalysisIsolatesFailingVariable verifies a variable without
// enough observations is reported in its notes while the rest complete.
func TestRunAnalysisIsolatesFailingVariable(t *testing.T) {
	kit := testkit.NewTestKit()
	svc := app.NewAnalysisService(kit.StageRunner(), kit.LedgerAdapter())
	site := core.SiteID("okavango-delta")
	multi := surveyedSeries(t, site, 20, 8)

	result, err := svc.RunAnalysis(context.Background(), app.AnalysisRequest{
		Site:      site,
		Multi:     multi,
		Params:    pipelineParams(),
		Variables: []core.VariableKey{series.VarCentrality, series.VarPrecipitation},
	})
	if err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}

	cent, ok := result.Variable(series.VarCentrality)
	if !ok || len(cent.Trends) != 2 {
		t.Fatal("Expected centrality to complete with 2 trend verdicts")
	}
	precip, ok := result.Variable(series.VarPrecipitation)
	if !ok {
		t.Fatal("Expected the failed variable reported")
	}
	if precip.Notes["failed"] == nil {
		t.Errorf("Expected a failure note, got %v", precip.Notes)
	}
	if len(precip.Trends) != 0 {
		t.Errorf("Expected no trend verdicts for the failed variable, got %d", len(precip.Trends))
	}
}

// TestRunAnalysisSkipsEmptyVariable verifies a variable with no
// observations at all is noted as skipped without failing the run.
func TestRunAnalysisSkipsEmptyVariable(t *testing.T) {
	kit := testkit.NewTestKit()
	svc := app.NewAnalysisService(kit.StageRunner(), kit.LedgerAdapter())
	multi := surveyedSeries(t, "pantanal", 20, 0)

	result, err := svc.RunAnalysis(context.Background(), app.AnalysisRequest{
		Site:      "pantanal",
		Multi:     multi,
		Params:    pipelineParams(),
		Variables: []core.VariableKey{series.VarCentrality, series.VarTemperature},
	})
	if err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}

	temp, ok := result.Variable(series.VarTemperature)
	if !ok {
		t.Fatal("Expected the skipped variable reported")
	}
	if temp.Notes["skipped"] != "no observations" {
		t.Errorf("Expected a skip note, got %v", temp.Notes)
	}
}

// TestRunAnalysisFailsWhenNothingCompletes verifies a run where every
// variable fails reports insufficient data, after the manifest was
// already persisted for replay.
func TestRunAnalysisFailsWhenNothingCompletes(t *testing.T) {
	kit := testkit.NewTestKit()
	svc := app.NewAnalysisService(kit.StageRunner(), kit.LedgerAdapter())
	multi := surveyedSeries(t, "pantanal", 20, 8)

	_, err := svc.RunAnalysis(context.Background(), app.AnalysisRequest{
		Site:      "pantanal",
		Multi:     multi,
		Params:    pipelineParams(),
		Variables: []core.VariableKey{series.VarPrecipitation},
	})
	if !core.IsInsufficientDataError(err) {
		t.Fatalf("Expected insufficient data error, got %v", err)
	}

	manifests, err := kit.LedgerAdapter().ListRunManifests(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRunManifests failed: %v", err)
	}
	if len(manifests) != 1 {
		t.Errorf("Expected the manifest persisted before the failure, got %d", len(manifests))
	}
}

// TestRunAnalysisValidatesRequest verifies parameter and input checks
// run before anything is stored.
func TestRunAnalysisValidatesRequest(t *testing.T) {
	kit := testkit.NewTestKit()
	svc := app.NewAnalysisService(kit.StageRunner(), kit.LedgerAdapter())

	bad := pipelineParams()
	bad.SignificanceLevel = 1.5
	if _, err := svc.RunAnalysis(context.Background(), app.AnalysisRequest{
		Site: "pantanal", Multi: surveyedSeries(t, "pantanal", 20, 0), Params: bad,
	}); !core.IsConfigError(err) {
		t.Errorf("Expected configuration error, got %v", err)
	}

	if _, err := svc.RunAnalysis(context.Background(), app.AnalysisRequest{
		Site: "pantanal", Params: pipelineParams(),
	}); !core.IsInsufficientDataError(err) {
		t.Errorf("Expected insufficient data error for a missing series, got %v", err)
	}

	if _, err := svc.RunAnalysis(context.Background(), app.AnalysisRequest{
		Site:      "pantanal",
		Multi:     surveyedSeries(t, "pantanal", 20, 0),
		Params:    pipelineParams(),
		Variables: []core.VariableKey{"biomass"},
	}); !core.IsConfigError(err) {
		t.Errorf("Expected configuration error for an unknown variable, got %v", err)
	}
}
