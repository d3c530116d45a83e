package stage

import (
	"encoding/json"

	"goveg/domain/core"
)

// StageName represents a named stage in the analysis pipeline
type StageName string

// StageKind categorizes stages by function
type StageKind string

const (
	StageKindTransform StageKind = "transform" // reshapes the series
	StageKindInference StageKind = "inference" // computes statistics from it
)

// Predefined stage names, in canonical pipeline order
const (
	StagePreprocess    StageName = "preprocess"
	StageSmooth        StageName = "smooth"
	StageDeseasonalize StageName = "deseasonalize"
	StageIndicators    StageName = "indicators"
	StageTrend         StageName = "trend"
)

// KindOf returns the kind of a known stage name
func KindOf(name StageName) (StageKind, error) {
	switch name {
	case StagePreprocess, StageSmooth, StageDeseasonalize:
		return StageKindTransform, nil
	case StageIndicators, StageTrend:
		return StageKindInference, nil
	default:
		return "", core.NewConfigError("stage", "unknown stage name: "+string(name))
	}
}

// StageSpec defines a single stage in the pipeline. Config carries the
// stage's tuning knobs so the plan hash covers the full parameterization.
type StageSpec struct {
	Name   StageName              `json:"name"`
	Kind   StageKind              `json:"kind"`
	Config map[string]interface{} `json:"config,omitempty"`
}

// StageResult is the output of one stage execution over one variable
type StageResult struct {
	StageName StageName           `json:"stage_name"`
	Success   bool                `json:"success"`
	Metrics   StageMetrics        `json:"metrics"`
	Artifacts []core.Artifact     `json:"artifacts,omitempty"`
	Audit     StageExecutionAudit `json:"audit"`
	Error     string              `json:"error,omitempty"`
	Duration  int64               `json:"duration_ms"`
}

// StageExecutionAudit captures the execution context of a stage
type StageExecutionAudit struct {
	StageName        StageName        `json:"stage_name"`
	RunID            core.RunID       `json:"run_id"`
	Variable         core.VariableKey `json:"variable"`
	Seed             int64            `json:"seed"`
	ArtifactsWritten int              `json:"artifacts_written"`
	SkipsByReason    map[string]int   `json:"skips_by_reason,omitempty"`
	Warnings         []string         `json:"warnings,omitempty"`
	ExecutedAt       core.Timestamp   `json:"executed_at"`
}

// StageMetrics contains canonical metrics for stage results
type StageMetrics struct {
	// Common metrics
	PointsIn   int   `json:"points_in"`
	PointsOut  int   `json:"points_out"`
	DurationMs int64 `json:"duration_ms"`

	// Inference metrics (indicator and trend stages)
	Tau    *float64 `json:"tau,omitempty"`
	PValue *float64 `json:"p_value,omitempty"`
	AR1    *float64 `json:"ar1,omitempty"`

	// Custom metrics (stage-specific)
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// StagePlan is an ordered list of stages with configuration. Order is
// semantic: each stage consumes the previous stage's output series.
type StagePlan struct {
	Stages []StageSpec `json:"stages"`
}

// NewStagePlan creates a new stage plan
func NewStagePlan(stages []StageSpec) *StagePlan {
	return &StagePlan{Stages: stages}
}

// Hash computes a deterministic hash of the plan. Stages are hashed in
// declared order because reordering them changes the analysis.
func (p *StagePlan) Hash() core.PlanHash {
	data, _ := json.Marshal(p.Stages)
	return core.NewPlanHash(data)
}

// Validate checks if the stage plan is valid
func (p *StagePlan) Validate() error {
	if len(p.Stages) == 0 {
		return core.NewConfigError("stage_plan", "must contain at least one stage")
	}

	seenNames := make(map[StageName]bool)
	for _, s := range p.Stages {
		kind, err := KindOf(s.Name)
		if err != nil {
			return err
		}
		if s.Kind != kind {
			return core.NewConfigError("stage", "stage "+string(s.Name)+" has kind "+string(s.Kind)+", want "+string(kind))
		}
		if seenNames[s.Name] {
			return core.NewConfigError("stage", "duplicate stage name: "+string(s.Name))
		}
		seenNames[s.Name] = true
	}

	return nil
}

// GetStagesByKind returns all stages of a specific kind
func (p *StagePlan) GetStagesByKind(kind StageKind) []StageSpec {
	var result []StageSpec
	for _, s := range p.Stages {
		if s.Kind == kind {
			result = append(result, s)
		}
	}
	return result
}

// PipelineResult contains the results of executing a stage plan over one
// variable's series
type PipelineResult struct {
	Plan    *StagePlan      `json:"plan"`
	Results []StageResult   `json:"results"`
	Overall PipelineSummary `json:"overall"`
}

// PipelineSummary provides high-level pipeline statistics
type PipelineSummary struct {
	TotalStages    int   `json:"total_stages"`
	Successful     int   `json:"successful"`
	Failed         int   `json:"failed"`
	TotalDuration  int64 `json:"total_duration_ms"`
	ArtifactsCount int   `json:"artifacts_count"`
}

// NewPipelineResult creates a new pipeline result
func NewPipelineResult(plan *StagePlan) *PipelineResult {
	return &PipelineResult{
		Plan:    plan,
		Results: make([]StageResult, 0),
		Overall: PipelineSummary{},
	}
}

// AddResult adds a stage result and updates the summary
func (r *PipelineResult) AddResult(result StageResult) {
	r.Results = append(r.Results, result)
	r.Overall.TotalStages++

	if result.Success {
		r.Overall.Successful++
	} else {
		r.Overall.Failed++
	}

	r.Overall.TotalDuration += result.Duration
	r.Overall.ArtifactsCount += len(result.Artifacts)
}

// Success returns true if all stages succeeded
func (r *PipelineResult) Success() bool {
	return r.Overall.Failed == 0
}
