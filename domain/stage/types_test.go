package stage

import (
	"testing"
)

func fullPlan() *StagePlan {
	return NewStagePlan([]StageSpec{
		{Name: StagePreprocess, Kind: StageKindTransform, Config: map[string]interface{}{"sigmas": 3.0}},
		{Name: StageSmooth, Kind: StageKindTransform, Config: map[string]interface{}{"fraction": 0.2}},
		{Name: StageDeseasonalize, Kind: StageKindTransform},
		{Name: StageIndicators, Kind: StageKindInference, Config: map[string]interface{}{"window": 15}},
		{Name: StageTrend, Kind: StageKindInference},
	})
}

// TestStagePlanValidate verifies a well-formed plan passes validation.
func TestStagePlanValidate(t *testing.T) {
	if err := fullPlan().Validate(); err != nil {
		t.Errorf("Expected valid plan, got %v", err)
	}
}

// TestStagePlanRejectsEmptyPlan verifies at least one stage is required.
func TestStagePlanRejectsEmptyPlan(t *testing.T) {
	if err := NewStagePlan(nil).Validate(); err == nil {
		t.Error("Expected error for empty plan, got nil")
	}
}

// TestStagePlanRejectsUnknownStage verifies unknown stage names fail.
func TestStagePlanRejectsUnknownStage(t *testing.T) {
	plan := NewStagePlan([]StageSpec{{Name: "bootstrap", Kind: StageKindInference}})
	if err := plan.Validate(); err == nil {
		t.Error("Expected error for unknown stage name, got nil")
	}
}

// TestStagePlanRejectsDuplicates verifies duplicate stage names fail.
func TestStagePlanRejectsDuplicates(t *testing.T) {
	plan := NewStagePlan([]StageSpec{
		{Name: StageSmooth, Kind: StageKindTransform},
		{Name: StageSmooth, Kind: StageKindTransform},
	})
	if err := plan.Validate(); err == nil {
		t.Error("Expected error for duplicate stage, got nil")
	}
}

// TestStagePlanRejectsWrongKind verifies the kind must match the name.
func TestStagePlanRejectsWrongKind(t *testing.T) {
	plan := NewStagePlan([]StageSpec{{Name: StageTrend, Kind: StageKindTransform}})
	if err := plan.Validate(); err == nil {
		t.Error("Expected error for mismatched kind, got nil")
	}
}

// TestStagePlanHashOrderSensitive verifies reordering stages changes the
// hash while identical plans share one.
func TestStagePlanHashOrderSensitive(t *testing.T) {
	a := fullPlan()
	b := fullPlan()
	if a.Hash() != b.Hash() {
		t.Error("Expected identical plans to share a hash")
	}

	reversed := NewStagePlan([]StageSpec{b.Stages[1], b.Stages[0]})
	forward := NewStagePlan([]StageSpec{b.Stages[0], b.Stages[1]})
	if reversed.Hash() == forward.Hash() {
		t.Error("Expected stage order to change the hash")
	}
}

// TestStagePlanHashConfigSensitive verifies config values feed the hash.
func TestStagePlanHashConfigSensitive(t *testing.T) {
	a := NewStagePlan([]StageSpec{{Name: StageSmooth, Kind: StageKindTransform, Config: map[string]interface{}{"fraction": 0.2}}})
	b := NewStagePlan([]StageSpec{{Name: StageSmooth, Kind: StageKindTransform, Config: map[string]interface{}{"fraction": 0.3}}})
	if a.Hash() == b.Hash() {
		t.Error("Expected config change to change the hash")
	}
}

// TestPipelineResultSummary verifies the summary tracks successes and
// failures as results are added.
func TestPipelineResultSummary(t *testing.T) {
	r := NewPipelineResult(fullPlan())
	r.AddResult(StageResult{StageName: StagePreprocess, Success: true, Duration: 5})
	r.AddResult(StageResult{StageName: StageSmooth, Success: false, Error: "too few points", Duration: 2})

	if r.Overall.TotalStages != 2 {
		t.Errorf("Expected 2 stages, got %d", r.Overall.TotalStages)
	}
	if r.Overall.Successful != 1 || r.Overall.Failed != 1 {
		t.Errorf("Expected 1 success and 1 failure, got %d/%d", r.Overall.Successful, r.Overall.Failed)
	}
	if r.Overall.TotalDuration != 7 {
		t.Errorf("Expected total duration 7, got %d", r.Overall.TotalDuration)
	}
	if r.Success() {
		t.Error("Expected pipeline with a failed stage to report failure")
	}
}

// TestGetStagesByKind verifies kind filtering.
func TestGetStagesByKind(t *testing.T) {
	transforms := fullPlan().GetStagesByKind(StageKindTransform)
	if len(transforms) != 3 {
		t.Errorf("Expected 3 transform stages, got %d", len(transforms))
	}
	inference := fullPlan().GetStagesByKind(StageKindInference)
	if len(inference) != 2 {
		t.Errorf("Expected 2 inference stages, got %d", len(inference))
	}
}
