package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	ParamsHash Hash
	SeriesHash Hash
	PlanHash   Hash
)

// Constructors
func NewParamsHash(data []byte) ParamsHash { return ParamsHash(NewHash(data)) }
func NewSeriesHash(data []byte) SeriesHash { return SeriesHash(NewHash(data)) }
func NewPlanHash(data []byte) PlanHash     { return PlanHash(NewHash(data)) }

// String conversions
func (h ParamsHash) String() string { return Hash(h).String() }
func (h SeriesHash) String() string { return Hash(h).String() }
func (h PlanHash) String() string   { return Hash(h).String() }

// ComputeParamsHash hashes a key-value parameter set deterministically,
// independent of map iteration order.
func ComputeParamsHash(params map[string]interface{}) ParamsHash {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("%v", params[key]))
	}

	return NewParamsHash([]byte(data.String()))
}

// ComputeSeriesHash fingerprints a set of named value vectors. Values are
// formatted with fixed precision so the hash is stable across runs.
func ComputeSeriesHash(vectors map[string][]float64) SeriesHash {
	keys := make([]string, 0, len(vectors))
	for k := range vectors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf(":%d:", len(vectors[key])))
		for _, v := range vectors[key] {
			data.WriteString(fmt.Sprintf("%.12g,", v))
		}
	}

	return NewSeriesHash([]byte(data.String()))
}
