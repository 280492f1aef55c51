package assign

import (
	"math/rand/v2"

	"github.com/TimurManjosov/flagstate/internal/identity"
)

// RolloutSpec describes a percentage rollout for a feature.
//
// Sticky rollouts are deterministic: the same context keeps its inclusion
// decision across repeated evaluations, and increasing Percentage only ever
// adds contexts (the same bucket is compared against a larger threshold, so
// nobody included at 25% drops out at 50%). Non-sticky rollouts draw fresh
// randomness on every call and carry no such guarantee.
type RolloutSpec struct {
	Feature    string `json:"feature"`
	Percentage int    `json:"percentage"` // clamped to 0-100
	Sticky     bool   `json:"sticky"`
	Seed       string `json:"seed,omitempty"`
}

// NewRolloutSpec builds a sticky rollout spec, clamping percentage into
// [0,100]. Out-of-range percentages are clamped, never rejected.
func NewRolloutSpec(feature string, percentage int, seed string) RolloutSpec {
	return RolloutSpec{
		Feature:    feature,
		Percentage: clampPercentage(percentage),
		Sticky:     true,
		Seed:       seed,
	}
}

func clampPercentage(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Rollout reports whether the given context is included in the rollout.
//
// Special cases:
//   - percentage=0: always false (disabled for all)
//   - percentage=100: always true (enabled for all)
//   - empty context id: always false (nothing to bucket)
func Rollout(spec RolloutSpec, id identity.Identity) bool {
	pct := clampPercentage(spec.Percentage)
	if pct == 0 {
		return false
	}
	if pct == 100 {
		return true
	}
	if !spec.Sticky {
		// Convenience mode: a fresh draw per call, intentionally
		// non-deterministic and exempt from the monotonicity contract.
		return rand.IntN(100) < pct
	}
	bucket := Bucket(spec.Feature, id, spec.Seed)
	if bucket < 0 {
		return false
	}
	return bucket < pct*(BucketSpace/100)
}
