package assign

import (
	"strconv"
	"testing"

	"github.com/TimurManjosov/flagstate/internal/identity"
)

func user(i int) identity.Identity {
	return identity.Identity{Kind: "user", ID: "user-" + strconv.Itoa(i)}
}

func TestBucket_Deterministic(t *testing.T) {
	id := identity.Identity{Kind: "user", ID: "user-123"}

	bucket1 := Bucket("feature_x", id, "test-seed")
	bucket2 := Bucket("feature_x", id, "test-seed")

	if bucket1 != bucket2 {
		t.Errorf("Bucket is not deterministic: got %d and %d", bucket1, bucket2)
	}
	if bucket1 < 0 || bucket1 >= BucketSpace {
		t.Errorf("Bucket out of range: %d", bucket1)
	}
}

func TestBucket_EmptyID(t *testing.T) {
	bucket := Bucket("feature_x", identity.Identity{Kind: "user"}, "seed")
	if bucket != -1 {
		t.Errorf("Expected -1 for empty context id, got %d", bucket)
	}
}

func TestBucket_KindIsPartOfKey(t *testing.T) {
	// Same id under different kinds must be allowed to land in different
	// buckets: kind participates in the hash key.
	a := identity.Identity{Kind: "user", ID: "42"}
	b := identity.Identity{Kind: "tenant", ID: "42"}

	differs := false
	for _, feature := range []string{"f1", "f2", "f3", "f4", "f5", "f6", "f7", "f8"} {
		if Bucket(feature, a, "seed") != Bucket(feature, b, "seed") {
			differs = true
			break
		}
	}
	if !differs {
		t.Error("Expected kind to influence bucket assignment for at least one feature")
	}
}

func TestBucket_SeedChangesAssignment(t *testing.T) {
	id := identity.Identity{Kind: "user", ID: "user-123"}

	differs := false
	for _, feature := range []string{"f1", "f2", "f3", "f4", "f5", "f6", "f7", "f8"} {
		if Bucket(feature, id, "seed-a") != Bucket(feature, id, "seed-b") {
			differs = true
			break
		}
	}
	if !differs {
		t.Error("Expected seed to influence bucket assignment for at least one feature")
	}
}

func TestBucket_Distribution(t *testing.T) {
	// 100k users over 10 coarse slices of the bucket space; each slice should
	// hold ~10% of users.
	counts := make([]int, 10)
	total := 100000

	for i := 0; i < total; i++ {
		bucket := Bucket("feature_x", user(i), "test-seed")
		counts[bucket/(BucketSpace/10)]++
	}

	for i, count := range counts {
		pct := float64(count) / float64(total) * 100
		if pct < 8 || pct > 12 {
			t.Errorf("Slice %d holds %.2f%% of users, expected ~10%%", i, pct)
		}
	}
}
