package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic
// operations. All randomness in the engine flows through this port.
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a
	// named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream creates a deterministic RNG stream scoped to one run, stage
	// and variable, so surrogate draws are identical across replays of the
	// same run and independent across variables
	Stream(ctx context.Context, runID, stageName, variableKey string, baseSeed int64) (*rand.Rand, error)

	// ValidateSeed ensures the seed produces expected deterministic results
	ValidateSeed(ctx context.Context, name string, seed int64, expected []float64) error
}
