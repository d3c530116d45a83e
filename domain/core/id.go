package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Use UUID v7 for time-ordered, sortable IDs
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID       ID
	SiteID      ID
	VariableKey ID
	ArtifactID  ID
)

// String conversions for domain IDs
func (id RunID) String() string       { return ID(id).String() }
func (id SiteID) String() string      { return ID(id).String() }
func (id VariableKey) String() string { return ID(id).String() }
func (id ArtifactID) String() string  { return ID(id).String() }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParseSiteID parses a string into SiteID
func ParseSiteID(s string) (SiteID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("site ID cannot be empty")
	}
	return SiteID(s), nil
}

// ParseVariableKey parses a string into VariableKey
func ParseVariableKey(s string) (VariableKey, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("variable key cannot be empty")
	}
	return VariableKey(s), nil
}

// ParseArtifactID parses a string into ArtifactID
func ParseArtifactID(s string) (ArtifactID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("artifact ID cannot be empty")
	}
	return ArtifactID(s), nil
}

// Artifact represents any output of the system
type Artifact struct {
	ID        ID           `json:"id"`
	Kind      ArtifactKind `json:"kind"`
	Payload   interface{}  `json:"payload"`
	CreatedAt Timestamp    `json:"created_at"`
}

// ArtifactKind defines types of artifacts
type ArtifactKind string

const (
	// ArtifactRunManifest records the parameters, seed, and plan hash of a run.
	ArtifactRunManifest ArtifactKind = "run_manifest"
	// ArtifactAnalysisResult is the terminal output of one analysis run.
	ArtifactAnalysisResult ArtifactKind = "analysis_result"
	// ArtifactDateRecord is the per-date reduction over all sub-image tiles.
	ArtifactDateRecord ArtifactKind = "date_record"
	// ArtifactSkippedDate records why an acquisition date was excluded.
	ArtifactSkippedDate ArtifactKind = "skipped_date"
	// ArtifactSubImageRecord is one tile's metrics (persisted only when configured).
	ArtifactSubImageRecord ArtifactKind = "sub_image_record"
	// ArtifactProcessedSeries captures a variable's cleaned/smoothed/indicator series.
	ArtifactProcessedSeries ArtifactKind = "processed_series"
)
