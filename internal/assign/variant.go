package assign

import (
	"errors"

	"github.com/TimurManjosov/flagstate/internal/identity"
)

// ErrInvalidWeights is returned when variant weights don't sum to exactly 100.
var ErrInvalidWeights = errors.New("variant weights must sum to 100")

// Variant is one arm of a weighted split. Weight is an integer percentage.
type Variant struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

// VariantSpec is a validated weighted split for a feature. Variants keep
// their definition order: the bucket space is partitioned by walking weights
// in that order, so reordering arms reassigns contexts.
type VariantSpec struct {
	Feature  string    `json:"feature"`
	Variants []Variant `json:"variants"`
	Seed     string    `json:"seed,omitempty"`
}

// NewVariantSpec validates and builds a VariantSpec. Weights must sum to
// exactly 100, names must be non-empty and unique, and each weight must be
// in [0,100]. Malformed specs are rejected here, at definition time, never
// coerced at evaluation time.
func NewVariantSpec(feature string, variants []Variant, seed string) (VariantSpec, error) {
	if len(variants) == 0 {
		return VariantSpec{}, errors.New("variant spec requires at least one variant")
	}

	totalWeight := 0
	seenNames := make(map[string]bool, len(variants))
	for _, v := range variants {
		if v.Name == "" {
			return VariantSpec{}, errors.New("variant name cannot be empty")
		}
		if seenNames[v.Name] {
			return VariantSpec{}, errors.New("duplicate variant name: " + v.Name)
		}
		seenNames[v.Name] = true

		if v.Weight < 0 || v.Weight > 100 {
			return VariantSpec{}, errors.New("variant weight must be between 0 and 100")
		}
		totalWeight += v.Weight
	}
	if totalWeight != 100 {
		return VariantSpec{}, ErrInvalidWeights
	}

	return VariantSpec{Feature: feature, Variants: variants, Seed: seed}, nil
}

// Assign returns the variant the context falls into.
//
// Algorithm:
//  1. Bucket(feature, identity, seed) -> 0-9999
//  2. Walk variants in definition order, accumulating weight*100, until the
//     cumulative sum exceeds the bucket.
//
// Example: [control:50, blue:30, green:20]
//   - bucket 0-4999    -> control
//   - bucket 5000-7999 -> blue
//   - bucket 8000-9999 -> green
//
// A 1% weight owns slots in every partition, so rare arms stay reachable
// without special-casing. Zero-weight arms own no slots and are never
// assigned. Returns empty string for an empty context id.
func Assign(spec VariantSpec, id identity.Identity) string {
	bucket := Bucket(spec.Feature, id, spec.Seed)
	if bucket < 0 {
		return ""
	}

	cumulative := 0
	for _, v := range spec.Variants {
		cumulative += v.Weight * (BucketSpace / 100)
		if bucket < cumulative {
			return v.Name
		}
	}

	// Unreachable when weights sum to 100.
	return spec.Variants[len(spec.Variants)-1].Name
}
