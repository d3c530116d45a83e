package testkit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"goveg/adapters/rng"
	"goveg/app"
	"goveg/domain/core"
	"goveg/domain/raster"
	"goveg/domain/resilience"
	"goveg/domain/series"
	"goveg/ports"
)

// TestKit provides in-memory adapters and fixtures for exercising the
// pipeline without a database or an image archive.
type TestKit struct {
	ledger  *InMemoryLedgerAdapter // Shared ledger instance
	imagery *FakeImageryAdapter    // Shared imagery archive
}

// NewTestKit creates a new test kit instance
func NewTestKit() *TestKit {
	return &TestKit{
		ledger:  NewInMemoryLedgerAdapter(),
		imagery: NewFakeImageryAdapter(),
	}
}

// LedgerAdapter returns a ledger adapter
func (t *TestKit) LedgerAdapter() ports.LedgerPort {
	// Return shared ledger instance so readers and pipeline use same storage
	return t.ledger
}

// LedgerReaderAdapter returns a read-only view of the shared ledger
func (t *TestKit) LedgerReaderAdapter() ports.LedgerReaderPort {
	return t.ledger
}

// RNGAdapter returns the production deterministic stream adapter; tests
// and real runs must draw the same numbers for the same scope
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return rng.NewStreamAdapter()
}

// ImageryAdapter returns the shared in-memory archive
func (t *TestKit) ImageryAdapter() *FakeImageryAdapter {
	return t.imagery
}

// StageRunner returns a stage runner wired to the shared ledger
func (t *TestKit) StageRunner() *app.StageRunner {
	return app.NewStageRunner(t.LedgerAdapter(), t.RNGAdapter())
}

// InMemoryLedgerAdapter implements LedgerPort with in-memory storage
type InMemoryLedgerAdapter struct {
	artifacts    map[core.ArtifactID]core.Artifact
	order        []core.ArtifactID // insertion order, so listings are deterministic
	runArtifacts map[core.RunID][]core.ArtifactID
	artifactRuns map[core.ArtifactID]core.RunID
	runSites     map[core.RunID]core.SiteID
	mu           sync.RWMutex
}

func NewInMemoryLedgerAdapter() *InMemoryLedgerAdapter {
	return &InMemoryLedgerAdapter{
		artifacts:    make(map[core.ArtifactID]core.Artifact),
		runArtifacts: make(map[core.RunID][]core.ArtifactID),
		artifactRuns: make(map[core.ArtifactID]core.RunID),
		runSites:     make(map[core.RunID]core.SiteID),
	}
}

func (s *InMemoryLedgerAdapter) StoreArtifact(ctx context.Context, runID core.RunID, artifact core.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	artifactID := core.ArtifactID(artifact.ID)
	if _, exists := s.artifacts[artifactID]; !exists {
		s.order = append(s.order, artifactID)
		s.runArtifacts[runID] = append(s.runArtifacts[runID], artifactID)
		s.artifactRuns[artifactID] = runID
	}
	s.artifacts[artifactID] = artifact

	// Remember the run's site so site filters work without payload scans
	if artifact.Kind == core.ArtifactRunManifest {
		if manifest, err := decodeManifest(artifact); err == nil {
			s.runSites[runID] = manifest.Site
		}
	}
	return nil
}

func (s *InMemoryLedgerAdapter) ListArtifacts(ctx context.Context, filters ports.ArtifactFilters) ([]core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []core.Artifact
	skipped := 0
	for _, artifactID := range s.order {
		artifact := s.artifacts[artifactID]
		if filters.Kind != nil && artifact.Kind != *filters.Kind {
			continue
		}
		if filters.RunID != nil && s.artifactRuns[artifactID] != *filters.RunID {
			continue
		}
		if filters.Site != nil && s.runSites[s.artifactRuns[artifactID]] != *filters.Site {
			continue
		}
		if skipped < filters.Offset {
			skipped++
			continue
		}
		results = append(results, artifact)
		if filters.Limit > 0 && len(results) >= filters.Limit {
			break
		}
	}
	return results, nil
}

func (s *InMemoryLedgerAdapter) GetArtifact(ctx context.Context, artifactID core.ArtifactID) (*core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifact, exists := s.artifacts[artifactID]
	if !exists {
		return nil, core.NewNotFoundError("artifact", artifactID.String())
	}
	return &artifact, nil
}

func (s *InMemoryLedgerAdapter) GetArtifactsByRun(ctx context.Context, runID core.RunID) ([]core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifactIDs := s.runArtifacts[runID]
	artifacts := make([]core.Artifact, 0, len(artifactIDs))
	for _, artifactID := range artifactIDs {
		if artifact, ok := s.artifacts[artifactID]; ok {
			artifacts = append(artifacts, artifact)
		}
	}
	return artifacts, nil
}

func (s *InMemoryLedgerAdapter) GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error) {
	return s.ListArtifacts(ctx, ports.ArtifactFilters{Kind: &kind, Limit: limit})
}

func (s *InMemoryLedgerAdapter) GetRunManifest(ctx context.Context, runID core.RunID) (*resilience.RunManifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, artifactID := range s.runArtifacts[runID] {
		artifact, ok := s.artifacts[artifactID]
		if !ok || artifact.Kind != core.ArtifactRunManifest {
			continue
		}
		return decodeManifest(artifact)
	}
	return nil, fmt.Errorf("%w %s", core.ErrRunNotFound, runID)
}

func (s *InMemoryLedgerAdapter) ListRunManifests(ctx context.Context, limit int) ([]*resilience.RunManifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var manifests []*resilience.RunManifest
	for _, artifactID := range s.order {
		artifact := s.artifacts[artifactID]
		if artifact.Kind != core.ArtifactRunManifest {
			continue
		}
		manifest, err := decodeManifest(artifact)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, manifest)
	}
	// Newest first, matching how run listings are consumed
	sort.SliceStable(manifests, func(i, j int) bool {
		return manifests[j].CreatedAt.Before(manifests[i].CreatedAt)
	})
	if limit > 0 && len(manifests) > limit {
		manifests = manifests[:limit]
	}
	return manifests, nil
}

// decodeManifest recovers a RunManifest from an artifact payload. Payloads
// stored in-process keep their Go type; payloads rehydrated from JSON
// arrive as generic maps and are decoded through a round trip.
func decodeManifest(artifact core.Artifact) (*resilience.RunManifest, error) {
	switch payload := artifact.Payload.(type) {
	case *resilience.RunManifest:
		return payload, nil
	case resilience.RunManifest:
		return &payload, nil
	default:
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode manifest payload: %w", err)
		}
		var manifest resilience.RunManifest
		if err := json.Unmarshal(raw, &manifest); err != nil {
			return nil, fmt.Errorf("failed to decode manifest payload: %w", err)
		}
		return &manifest, nil
	}
}

// FakeImageryAdapter implements ImageryPort over in-memory images, so
// survey behavior can be tested against hand-built archives.
type FakeImageryAdapter struct {
	images  map[core.SiteID]map[core.Date]*raster.Image
	climate map[core.SiteID]map[core.Date]series.Climate
	missing map[core.SiteID]map[core.Date]bool
	mu      sync.RWMutex
}

func NewFakeImageryAdapter() *FakeImageryAdapter {
	return &FakeImageryAdapter{
		images:  make(map[core.SiteID]map[core.Date]*raster.Image),
		climate: make(map[core.SiteID]map[core.Date]series.Climate),
		missing: make(map[core.SiteID]map[core.Date]bool),
	}
}

// AddImage registers an image for one acquisition date
func (f *FakeImageryAdapter) AddImage(site core.SiteID, date core.Date, img *raster.Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.images[site] == nil {
		f.images[site] = make(map[core.Date]*raster.Image)
	}
	f.images[site][date] = img
}

// AddClimate registers weather values for one acquisition date
func (f *FakeImageryAdapter) AddClimate(site core.SiteID, date core.Date, climate series.Climate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.climate[site] == nil {
		f.climate[site] = make(map[core.Date]series.Climate)
	}
	f.climate[site][date] = climate
}

// AddMissing registers a date that is listed in the archive but whose
// image fetch fails, mimicking a cloud-excluded composite
func (f *FakeImageryAdapter) AddMissing(site core.SiteID, date core.Date) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[site] == nil {
		f.missing[site] = make(map[core.Date]bool)
	}
	f.missing[site][date] = true
}

func (f *FakeImageryAdapter) ListDates(ctx context.Context, site core.SiteID) ([]core.Date, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	seen := make(map[core.Date]bool)
	var dates []core.Date
	for date := range f.images[site] {
		if !seen[date] {
			seen[date] = true
			dates = append(dates, date)
		}
	}
	for date := range f.missing[site] {
		if !seen[date] {
			seen[date] = true
			dates = append(dates, date)
		}
	}
	if len(dates) == 0 {
		return nil, core.NewNotFoundError("site archive", site.String())
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (f *FakeImageryAdapter) FetchImage(ctx context.Context, site core.SiteID, date core.Date) (*raster.Image, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.missing[site][date] {
		return nil, fmt.Errorf("%w: %s %s", core.ErrImageUnavailable, site, date)
	}
	img, ok := f.images[site][date]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", core.ErrImageUnavailable, site, date)
	}
	return img, nil
}

func (f *FakeImageryAdapter) FetchClimate(ctx context.Context, site core.SiteID, date core.Date) (series.Climate, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	climate, ok := f.climate[site][date]
	if !ok {
		return series.Climate{}, core.NewNotFoundError("climate", fmt.Sprintf("%s %s", site, date))
	}
	return climate, nil
}
