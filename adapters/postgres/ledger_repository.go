package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"goveg/domain/core"
	"goveg/domain/resilience"
	"goveg/ports"
)

// LedgerRepositoryImpl implements the ledger ports for PostgreSQL. Every
// artifact lives in one table with its payload as JSONB, so new artifact
// kinds need no schema change.
type LedgerRepositoryImpl struct {
	db *sqlx.DB
}

var _ ports.LedgerPort = (*LedgerRepositoryImpl)(nil)

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(db *sqlx.DB) *LedgerRepositoryImpl {
	return &LedgerRepositoryImpl{db: db}
}

// EnsureSchema creates the artifacts table and its indexes if missing
func (r *LedgerRepositoryImpl) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS artifacts (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			site TEXT,
			kind TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_artifacts_run_id ON artifacts (run_id);
		CREATE INDEX IF NOT EXISTS idx_artifacts_kind ON artifacts (kind);
		CREATE INDEX IF NOT EXISTS idx_artifacts_site ON artifacts (site)`)
	if err != nil {
		return fmt.Errorf("failed to create artifacts schema: %w", err)
	}
	return nil
}

// StoreArtifact upserts one artifact under its run
func (r *LedgerRepositoryImpl) StoreArtifact(ctx context.Context, runID core.RunID, artifact core.Artifact) error {
	payloadJSON, err := json.Marshal(artifact.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode artifact payload: %w", err)
	}

	createdAt := artifact.CreatedAt.Time()
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, run_id, site, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			site = EXCLUDED.site,
			kind = EXCLUDED.kind,
			payload = EXCLUDED.payload`,
		artifact.ID.String(), runID.String(), siteOf(artifact), string(artifact.Kind),
		payloadJSON, createdAt)
	return err
}

// siteOf extracts the site column value from payloads that carry one.
// Artifacts without a site rely on their run manifest for site filtering.
func siteOf(artifact core.Artifact) sql.NullString {
	type sited interface{ SiteID() core.SiteID }
	var site core.SiteID
	switch payload := artifact.Payload.(type) {
	case *resilience.RunManifest:
		site = payload.Site
	case *resilience.AnalysisResult:
		site = payload.Site
	case sited:
		site = payload.SiteID()
	}
	if site == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: site.String(), Valid: true}
}

func (r *LedgerRepositoryImpl) ListArtifacts(ctx context.Context, filters ports.ArtifactFilters) ([]core.Artifact, error) {
	query := `
		SELECT id, kind, payload, created_at
		FROM artifacts
		WHERE 1=1`
	var args []interface{}

	if filters.RunID != nil {
		args = append(args, filters.RunID.String())
		query += fmt.Sprintf(" AND run_id = $%d", len(args))
	}
	if filters.Kind != nil {
		args = append(args, string(*filters.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filters.Site != nil {
		args = append(args, filters.Site.String())
		n := len(args)
		query += fmt.Sprintf(` AND (site = $%d OR run_id IN (
			SELECT run_id FROM artifacts WHERE kind = 'run_manifest' AND site = $%d))`, n, n)
	}

	query += " ORDER BY created_at ASC, id ASC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []core.Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, rows.Err()
}

func (r *LedgerRepositoryImpl) GetArtifact(ctx context.Context, artifactID core.ArtifactID) (*core.Artifact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, payload, created_at
		FROM artifacts
		WHERE id = $1`, artifactID.String())

	artifact, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError("artifact", artifactID.String())
		}
		return nil, err
	}
	return &artifact, nil
}

func (r *LedgerRepositoryImpl) GetArtifactsByRun(ctx context.Context, runID core.RunID) ([]core.Artifact, error) {
	id := runID
	return r.ListArtifacts(ctx, ports.ArtifactFilters{RunID: &id})
}

func (r *LedgerRepositoryImpl) GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error) {
	return r.ListArtifacts(ctx, ports.ArtifactFilters{Kind: &kind, Limit: limit})
}

func (r *LedgerRepositoryImpl) GetRunManifest(ctx context.Context, runID core.RunID) (*resilience.RunManifest, error) {
	var payloadJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT payload
		FROM artifacts
		WHERE run_id = $1 AND kind = $2
		ORDER BY created_at ASC
		LIMIT 1`, runID.String(), string(core.ArtifactRunManifest)).Scan(&payloadJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w %s", core.ErrRunNotFound, runID)
		}
		return nil, err
	}

	var manifest resilience.RunManifest
	if err := json.Unmarshal(payloadJSON, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode run manifest: %w", err)
	}
	return &manifest, nil
}

func (r *LedgerRepositoryImpl) ListRunManifests(ctx context.Context, limit int) ([]*resilience.RunManifest, error) {
	query := `
		SELECT payload
		FROM artifacts
		WHERE kind = $1
		ORDER BY created_at DESC`
	args := []interface{}{string(core.ArtifactRunManifest)}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $2"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var manifests []*resilience.RunManifest
	for rows.Next() {
		var payloadJSON []byte
		if err := rows.Scan(&payloadJSON); err != nil {
			return nil, err
		}
		var manifest resilience.RunManifest
		if err := json.Unmarshal(payloadJSON, &manifest); err != nil {
			return nil, fmt.Errorf("failed to decode run manifest: %w", err)
		}
		manifests = append(manifests, &manifest)
	}
	return manifests, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArtifact(row rowScanner) (core.Artifact, error) {
	var (
		id          string
		kind        string
		payloadJSON []byte
		createdAt   time.Time
	)
	if err := row.Scan(&id, &kind, &payloadJSON, &createdAt); err != nil {
		return core.Artifact{}, err
	}

	var payload interface{}
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return core.Artifact{}, fmt.Errorf("failed to decode artifact payload: %w", err)
	}
	return core.Artifact{
		ID:        core.ID(id),
		Kind:      core.ArtifactKind(kind),
		Payload:   payload,
		CreatedAt: core.NewTimestamp(createdAt),
	}, nil
}
