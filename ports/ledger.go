package ports

import (
	"context"

	"goveg/domain/core"
	"goveg/domain/resilience"
)

// LedgerWriterPort provides append-only write access to artifacts.
// This is the only way results leave a run; nothing in the pipeline
// reads its own writes back.
type LedgerWriterPort interface {
	StoreArtifact(ctx context.Context, runID core.RunID, artifact core.Artifact) error
}

// LedgerReaderPort provides read-only access to stored artifacts.
// Use this for queries, replay, and API access.
type LedgerReaderPort interface {
	// Artifact queries (read-only)
	ListArtifacts(ctx context.Context, filters ArtifactFilters) ([]core.Artifact, error)
	GetArtifact(ctx context.Context, artifactID core.ArtifactID) (*core.Artifact, error)
	GetArtifactsByRun(ctx context.Context, runID core.RunID) ([]core.Artifact, error)
	GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error)

	// Run manifest queries
	GetRunManifest(ctx context.Context, runID core.RunID) (*resilience.RunManifest, error)
	ListRunManifests(ctx context.Context, limit int) ([]*resilience.RunManifest, error)
}

// ArtifactFilters for querying artifacts
type ArtifactFilters struct {
	RunID  *core.RunID
	Kind   *core.ArtifactKind
	Site   *core.SiteID
	Limit  int
	Offset int
}

// LedgerPort combines read and write access for callers that own a run
// end to end, such as the CLI.
type LedgerPort interface {
	LedgerWriterPort
	LedgerReaderPort
}
