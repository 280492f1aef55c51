// Package assign provides deterministic context bucketing for percentage
// rollouts and weighted variant assignment.
package assign

import (
	"github.com/cespare/xxhash/v2"

	"github.com/TimurManjosov/flagstate/internal/identity"
)

// BucketSpace is the number of slots contexts are partitioned into.
// 10000 slots means integer percentages compare as bucket < pct*100 and a
// 1% variant weight still owns 100 distinct slots.
const BucketSpace = 10000

// Bucket returns a deterministic bucket (0-9999) for the given feature,
// identity, and seed. The same (feature, kind, id, seed) combination always
// returns the same bucket: no external state, no randomness, no clock.
func Bucket(feature string, id identity.Identity, seed string) int {
	if id.ID == "" {
		return -1 // Invalid: no context
	}
	// Delimited concatenation keeps (a,bc) and (ab,c) in distinct keys.
	key := feature + ":" + id.Kind + ":" + id.ID + ":" + seed
	hash := xxhash.Sum64String(key)
	return int(hash % BucketSpace)
}
