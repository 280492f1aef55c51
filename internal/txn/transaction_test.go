package txn

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/TimurManjosov/flagstate/internal/identity"
	"github.com/TimurManjosov/flagstate/internal/store"
)

var testID = identity.Identity{Kind: "user", ID: "u1"}

// failingStore wraps a memory store and fails Set for one feature.
type failingStore struct {
	store.Store
	failOn string
}

var errStoreDown = errors.New("store down")

func (f *failingStore) Set(ctx context.Context, feature, kind, id string, value store.Value) error {
	if feature == f.failOn {
		return errStoreDown
	}
	return f.Store.Set(ctx, feature, kind, id, value)
}

func snapshotState(t *testing.T, s store.Store) map[string]store.Value {
	t.Helper()
	m, err := s.All(context.Background(), testID.Kind, testID.ID)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	return m
}

func TestCommit_AppliesInDeclaredOrder(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	tx := New(s).
		Activate("premium").
		ActivateWith("dark", "theme").
		Deactivate("legacy_ui")

	if err := tx.Commit(ctx, testID); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	v, _, _ := s.Get(ctx, "premium", "user", "u1")
	if v != true {
		t.Errorf("Expected premium=true, got %v", v)
	}
	v, _, _ = s.Get(ctx, "theme", "user", "u1")
	if v != "dark" {
		t.Errorf("Expected theme=dark, got %v", v)
	}
	v, _, _ = s.Get(ctx, "legacy_ui", "user", "u1")
	if v != false {
		t.Errorf("Expected legacy_ui=false, got %v", v)
	}
}

func TestCommit_NoSideEffectsBeforeCommit(t *testing.T) {
	s := store.NewMemoryStore()

	_ = New(s).Activate("premium").Deactivate("legacy_ui")

	if state := snapshotState(t, s); len(state) != 0 {
		t.Errorf("Expected no writes before commit, got %v", state)
	}
}

func TestCommit_AutomaticRollbackOnStorageFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()

	// Pre-existing state the rollback must restore exactly.
	_ = mem.Set(ctx, "alpha", "user", "u1", "original")
	_ = mem.Set(ctx, "beta", "user", "u1", true)

	failing := &failingStore{Store: mem, failOn: "gamma"}
	before := snapshotState(t, mem)

	tx := New(failing).
		ActivateWith("changed", "alpha").
		Deactivate("beta").
		Activate("gamma") // third op fails

	err := tx.Commit(ctx, testID)
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("Expected the original store error, got %v", err)
	}

	after := snapshotState(t, mem)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("State not restored after failed commit.\nbefore: %v\nafter:  %v", before, after)
	}
}

func TestCommit_RollbackRestoresAbsence(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()

	// "fresh" does not exist before the commit; after the failure it must be
	// absent again, not false.
	failing := &failingStore{Store: mem, failOn: "boom"}
	tx := New(failing).Activate("fresh").Activate("boom")

	if err := tx.Commit(ctx, testID); err == nil {
		t.Fatal("Expected commit to fail")
	}

	_, ok, _ := mem.Get(ctx, "fresh", "user", "u1")
	if ok {
		t.Error("Expected 'fresh' to be absent after rollback, found a value")
	}
}

func TestCommit_FailureHandlerRunsBeforeReturn(t *testing.T) {
	mem := store.NewMemoryStore()
	failing := &failingStore{Store: mem, failOn: "boom"}

	var handledErr error
	var handledID identity.Identity
	tx := New(failing).
		Activate("boom").
		OnFailure(func(err error, id identity.Identity) {
			handledErr = err
			handledID = id
		})

	err := tx.Commit(context.Background(), testID)
	if err == nil {
		t.Fatal("Expected commit to fail")
	}
	if !errors.Is(handledErr, errStoreDown) {
		t.Errorf("Expected handler to receive the store error, got %v", handledErr)
	}
	if handledID != testID {
		t.Errorf("Expected handler to receive %v, got %v", testID, handledID)
	}
}

func TestRollback_BeforeCommitIsNoOp(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	_ = s.Set(ctx, "premium", "user", "u1", true)

	tx := New(s).Deactivate("premium")
	if err := tx.Rollback(ctx, testID); err != nil {
		t.Fatalf("Rollback before commit must be a no-op, got %v", err)
	}

	v, _, _ := s.Get(ctx, "premium", "user", "u1")
	if v != true {
		t.Errorf("Expected premium untouched, got %v", v)
	}
}

func TestRollback_AfterSuccessfulCommit(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	_ = s.Set(ctx, "premium", "user", "u1", false)

	tx := New(s).Activate("premium")
	if err := tx.Commit(ctx, testID); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if err := tx.Rollback(ctx, testID); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	v, _, _ := s.Get(ctx, "premium", "user", "u1")
	if v != false {
		t.Errorf("Expected rollback to restore false, got %v", v)
	}
}

func TestCommit_RebaselinesOnRepeatedCommit(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	_ = s.Set(ctx, "premium", "user", "u1", "v1")

	tx := New(s).ActivateWith("v2", "premium")
	if err := tx.Commit(ctx, testID); err != nil {
		t.Fatalf("first Commit failed: %v", err)
	}

	// External change between commits becomes the new baseline.
	_ = s.Set(ctx, "premium", "user", "u1", "external")
	if err := tx.Commit(ctx, testID); err != nil {
		t.Fatalf("second Commit failed: %v", err)
	}

	if err := tx.Rollback(ctx, testID); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	v, _, _ := s.Get(ctx, "premium", "user", "u1")
	if v != "external" {
		t.Errorf("Expected rollback to the most recent baseline 'external', got %v", v)
	}
}

func TestCommit_UnknownOperationTypesAreSkipped(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	_ = s.Set(ctx, "premium", "user", "u1", "keep")

	tx := New(s).
		Add("archive", nil, "premium"). // unknown type: skipped
		Activate("other")

	if err := tx.Commit(ctx, testID); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	v, _, _ := s.Get(ctx, "premium", "user", "u1")
	if v != "keep" {
		t.Errorf("Expected unknown op to leave premium as-is, got %v", v)
	}
	v, _, _ = s.Get(ctx, "other", "user", "u1")
	if v != true {
		t.Errorf("Expected known op to still apply, got %v", v)
	}
}

func TestFeatures_FirstReferenceOrder(t *testing.T) {
	tx := New(store.NewMemoryStore()).
		Activate("a", "b").
		Deactivate("b", "c")

	got := tx.Features()
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
