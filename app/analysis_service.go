package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"goveg/domain/core"
	"goveg/domain/resilience"
	"goveg/domain/series"
	"goveg/internal/log"
	"goveg/ports"
)

// AnalysisService runs the resilience pipeline over a surveyed series
type AnalysisService struct {
	runner *StageRunner
	ledger ports.LedgerPort
}

// NewAnalysisService creates an analysis service
func NewAnalysisService(runner *StageRunner, ledger ports.LedgerPort) *AnalysisService {
	return &AnalysisService{
		runner: runner,
		ledger: ledger,
	}
}

// AnalysisRequest specifies one analysis run
type AnalysisRequest struct {
	Site        core.SiteID
	Multi       *series.MultiSeries
	Skipped     []series.SkippedDate
	Params      resilience.AnalysisParams
	Variables   []core.VariableKey
	CodeVersion string
}

// RunAnalysis executes the stage plan over every requested variable in
// parallel. The run manifest is persisted before any stage artifact so
// the ledger can replay the run. A variable failing for lack of data is
// reported in its analysis notes without aborting the others;
// configuration errors abort the whole run.
func (s *AnalysisService) RunAnalysis(ctx context.Context, req AnalysisRequest) (*resilience.AnalysisResult, error) {
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}
	if req.Multi == nil || req.Multi.Len() == 0 {
		return nil, core.NewInsufficientDataError("analysis", 0, 3)
	}

	startedAt := core.Now()
	runID := core.RunID(core.NewID())
	plan := PlanFromParams(req.Params)
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	seriesHash := req.Multi.Fingerprint()
	manifest := resilience.NewRunManifest(runID, req.Site, seriesHash, req.Params, plan, req.CodeVersion)
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	if err := s.ledger.StoreArtifact(ctx, runID, manifest.ToArtifact()); err != nil {
		return nil, fmt.Errorf("failed to store run manifest: %w", err)
	}

	variables := req.Variables
	if len(variables) == 0 {
		variables = series.AnalyzableVariables()
	}

	analyses := make([]*resilience.VariableAnalysis, len(variables))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range variables {
		g.Go(func() error {
			ts, ok := req.Multi.Series(key)
			if !ok {
				return core.NewConfigError("variables", fmt.Sprintf("unknown variable %q", key))
			}
			if ts.Len() == 0 {
				log.Warnw("variable has no observations", "run_id", runID, "variable", key)
				analyses[i] = &resilience.VariableAnalysis{
					Variable: key,
					Notes:    map[string]interface{}{"skipped": "no observations"},
				}
				return nil
			}

			_, analysis, err := s.runner.Run(gctx, StageRequest{
				RunID:    runID,
				Variable: key,
				Raw:      ts,
				Plan:     plan,
				Params:   req.Params,
			})
			if err != nil {
				if core.IsInsufficientDataError(err) || core.IsDataQualityError(err) {
					if analysis.Notes == nil {
						analysis.Notes = make(map[string]interface{})
					}
					analysis.Notes["failed"] = err.Error()
					analyses[i] = analysis
					return nil
				}
				return fmt.Errorf("pipeline for %s failed: %w", key, err)
			}
			analyses[i] = analysis
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &resilience.AnalysisResult{
		RunID:      runID,
		Site:       req.Site,
		Params:     req.Params,
		ParamsHash: manifest.ParamsHash,
		SeriesHash: seriesHash,
		PlanHash:   manifest.PlanHash,
		Skipped:    req.Skipped,
		StartedAt:  startedAt,
	}
	completed := 0
	for _, analysis := range analyses {
		if analysis == nil {
			continue
		}
		result.Variables = append(result.Variables, analysis)
		if len(analysis.Trends) > 0 {
			completed++
		}
	}
	if completed == 0 {
		return nil, core.NewInsufficientDataError("analysis", 0, 1)
	}
	result.SortVariables()
	result.CompletedAt = core.Now()

	if err := s.ledger.StoreArtifact(ctx, runID, result.ToArtifact()); err != nil {
		return nil, fmt.Errorf("failed to store analysis result: %w", err)
	}

	log.Infow("analysis complete", "run_id", runID, "site", req.Site,
		"variables", len(result.Variables), "completed", completed)
	return result, nil
}
