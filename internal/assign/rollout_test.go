package assign

import (
	"testing"

	"github.com/TimurManjosov/flagstate/internal/identity"
)

func TestRollout_Percentage0(t *testing.T) {
	spec := NewRolloutSpec("feature_x", 0, "seed")
	for i := 0; i < 100; i++ {
		if Rollout(spec, user(i)) {
			t.Fatalf("Expected false for percentage=0 (user %d)", i)
		}
	}
}

func TestRollout_Percentage100(t *testing.T) {
	spec := NewRolloutSpec("feature_x", 100, "seed")
	for i := 0; i < 100; i++ {
		if !Rollout(spec, user(i)) {
			t.Fatalf("Expected true for percentage=100 (user %d)", i)
		}
	}
}

func TestRollout_ClampsPercentage(t *testing.T) {
	// Out-of-range percentages are clamped, never rejected.
	if got := NewRolloutSpec("f", -10, "s").Percentage; got != 0 {
		t.Errorf("Expected clamp to 0, got %d", got)
	}
	if got := NewRolloutSpec("f", 250, "s").Percentage; got != 100 {
		t.Errorf("Expected clamp to 100, got %d", got)
	}

	// Clamping also applies to hand-built specs at evaluation time.
	if Rollout(RolloutSpec{Feature: "f", Percentage: -5, Sticky: true}, user(1)) {
		t.Error("Expected false for negative percentage")
	}
	if !Rollout(RolloutSpec{Feature: "f", Percentage: 101, Sticky: true}, user(1)) {
		t.Error("Expected true for percentage > 100")
	}
}

func TestRollout_EmptyContext(t *testing.T) {
	spec := NewRolloutSpec("feature_x", 50, "seed")
	if Rollout(spec, identity.Identity{}) {
		t.Error("Expected false for empty context")
	}
}

func TestRollout_Deterministic(t *testing.T) {
	spec := NewRolloutSpec("feature_x", 50, "seed")
	id := user(123)

	first := Rollout(spec, id)
	for i := 0; i < 20; i++ {
		if Rollout(spec, id) != first {
			t.Fatal("Sticky rollout is not deterministic")
		}
	}
}

func TestRollout_ExpansionMonotonicity(t *testing.T) {
	// Every context included at pct must stay included at every higher pct.
	for i := 0; i < 200; i++ {
		id := user(i)
		included := false
		for pct := 0; pct <= 100; pct += 5 {
			now := Rollout(NewRolloutSpec("feature_x", pct, "seed"), id)
			if included && !now {
				t.Fatalf("User %d included at a lower percentage was dropped at %d%%", i, pct)
			}
			included = now
		}
	}
}

func TestRollout_StickyGrowth25To50(t *testing.T) {
	// S25 must be a strict subset of S50 over a population of contexts.
	spec25 := NewRolloutSpec("checkout_v2", 25, "s")
	spec50 := NewRolloutSpec("checkout_v2", 50, "s")

	s25 := make(map[int]bool)
	s50 := make(map[int]bool)
	for i := 0; i < 100; i++ {
		if Rollout(spec25, user(i)) {
			s25[i] = true
		}
		if Rollout(spec50, user(i)) {
			s50[i] = true
		}
	}

	for i := range s25 {
		if !s50[i] {
			t.Errorf("User %d in S25 but not in S50", i)
		}
	}
	if len(s50) <= len(s25) {
		t.Errorf("Expected |S50| > |S25|, got %d <= %d", len(s50), len(s25))
	}
}

func TestRollout_Distribution(t *testing.T) {
	spec := NewRolloutSpec("feature_x", 25, "test-seed")
	included := 0
	total := 10000

	for i := 0; i < total; i++ {
		if Rollout(spec, user(i)) {
			included++
		}
	}

	// Expect ~25%, allow 5% variance.
	pct := float64(included) / float64(total) * 100
	if pct < 20 || pct > 30 {
		t.Errorf("Expected ~25%% rollout, got %.2f%% (%d/%d)", pct, included, total)
	}
}

func TestRollout_NonStickyBoundaries(t *testing.T) {
	// Non-sticky mode carries no determinism guarantee, but the 0/100
	// boundaries still hold.
	if Rollout(RolloutSpec{Feature: "f", Percentage: 0}, user(1)) {
		t.Error("Expected false for non-sticky percentage=0")
	}
	if !Rollout(RolloutSpec{Feature: "f", Percentage: 100}, user(1)) {
		t.Error("Expected true for non-sticky percentage=100")
	}
}
