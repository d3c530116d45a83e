package resilience

import (
	"crypto/sha256"
	"fmt"

	"goveg/domain/core"
	"goveg/domain/stage"
)

// RunManifest captures everything that determines a run. It is written
// to the ledger before any stage artifacts so a run can be replayed from
// the ledger alone.
type RunManifest struct {
	RunID       core.RunID      `json:"run_id"`
	Site        core.SiteID     `json:"site"`
	SeriesHash  core.SeriesHash `json:"series_hash"`
	ParamsHash  core.ParamsHash `json:"params_hash"`
	PlanHash    core.PlanHash   `json:"plan_hash"`
	Seed        int64           `json:"seed"`
	CodeVersion string          `json:"code_version"`
	Fingerprint RunFingerprint  `json:"fingerprint"`
	CreatedAt   core.Timestamp  `json:"created_at"`
}

// NewRunManifest creates a manifest from the run's determinism parameters
func NewRunManifest(
	runID core.RunID,
	site core.SiteID,
	seriesHash core.SeriesHash,
	params AnalysisParams,
	plan *stage.StagePlan,
	codeVersion string,
) *RunManifest {
	paramsHash := params.Hash()
	planHash := plan.Hash()
	fingerprint := NewRunFingerprint(site, seriesHash, paramsHash, planHash, params.Seed, codeVersion)

	return &RunManifest{
		RunID:       runID,
		Site:        site,
		SeriesHash:  seriesHash,
		ParamsHash:  paramsHash,
		PlanHash:    planHash,
		Seed:        params.Seed,
		CodeVersion: codeVersion,
		Fingerprint: fingerprint,
		CreatedAt:   core.Now(),
	}
}

// ToArtifact converts the manifest to a ledger artifact
func (m *RunManifest) ToArtifact() core.Artifact {
	return core.Artifact{
		ID:        core.NewID(),
		Kind:      core.ArtifactRunManifest,
		Payload:   m,
		CreatedAt: m.CreatedAt,
	}
}

// Validate checks if the manifest is complete
func (m *RunManifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewConfigError("run_manifest", "run_id cannot be empty")
	}
	if m.Site == "" {
		return core.NewConfigError("run_manifest", "site cannot be empty")
	}
	if m.SeriesHash == "" {
		return core.NewConfigError("run_manifest", "series_hash cannot be empty")
	}
	if m.ParamsHash == "" {
		return core.NewConfigError("run_manifest", "params_hash cannot be empty")
	}
	if m.PlanHash == "" {
		return core.NewConfigError("run_manifest", "plan_hash cannot be empty")
	}
	return nil
}

// RunFingerprint pins everything that determines a run's output
type RunFingerprint struct {
	Site        core.SiteID     `json:"site"`
	SeriesHash  core.SeriesHash `json:"series_hash"`
	ParamsHash  core.ParamsHash `json:"params_hash"`
	PlanHash    core.PlanHash   `json:"plan_hash"`
	Seed        int64           `json:"seed"`
	CodeVersion string          `json:"code_version"`
	Fingerprint core.Hash       `json:"fingerprint"` // hash of all above
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(site core.SiteID, seriesHash core.SeriesHash,
	paramsHash core.ParamsHash, planHash core.PlanHash, seed int64, codeVersion string) RunFingerprint {

	fingerprint := computeRunFingerprint(site, seriesHash, paramsHash, planHash, seed, codeVersion)

	return RunFingerprint{
		Site:        site,
		SeriesHash:  seriesHash,
		ParamsHash:  paramsHash,
		PlanHash:    planHash,
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: fingerprint,
	}
}

func computeRunFingerprint(site core.SiteID, seriesHash core.SeriesHash,
	paramsHash core.ParamsHash, planHash core.PlanHash, seed int64, codeVersion string) core.Hash {

	data := fmt.Sprintf("site:%s|series:%s|params:%s|plan:%s|seed:%d|code:%s",
		site, seriesHash, paramsHash, planHash, seed, codeVersion)

	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}
