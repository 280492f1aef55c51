// Package txn provides ordered batches of feature mutations that commit
// all-or-nothing against a feature store. Individual store writes are not
// atomic at the storage layer; the transaction compensates by capturing
// each touched feature's initial state and restoring it when a mid-batch
// write fails.
package txn

import (
	"context"
	"fmt"
	"log"

	"github.com/TimurManjosov/flagstate/internal/identity"
	"github.com/TimurManjosov/flagstate/internal/store"
)

type opType string

const (
	opActivate   opType = "activate"
	opDeactivate opType = "deactivate"
)

type operation struct {
	typ      opType
	features []string
	value    store.Value
}

// captured is a feature's baseline: its stored value, or absence.
type captured struct {
	value   store.Value
	present bool
}

// FailureHandler is invoked with the original error and context before a
// failed commit re-raises.
type FailureHandler func(err error, id identity.Identity)

// Transaction accumulates activate/deactivate operations as pure data and
// applies them in declared order on Commit. No side effects occur before
// Commit is called.
//
// Commit captures the current stored state of every referenced feature as
// the rollback baseline. Committing the same transaction again re-baselines:
// Rollback always restores relative to the most recent commit, not the
// transaction's construction time.
type Transaction struct {
	st        store.Store
	ops       []operation
	baseline  map[string]captured
	onFailure FailureHandler
}

// New creates an empty transaction bound to a store.
func New(st store.Store) *Transaction {
	return &Transaction{st: st}
}

// Activate queues activation (value true) for one or more features.
func (t *Transaction) Activate(features ...string) *Transaction {
	t.ops = append(t.ops, operation{typ: opActivate, features: features, value: true})
	return t
}

// ActivateWith queues activation carrying an explicit value.
func (t *Transaction) ActivateWith(value store.Value, features ...string) *Transaction {
	t.ops = append(t.ops, operation{typ: opActivate, features: features, value: value})
	return t
}

// Deactivate queues deactivation (value false) for one or more features.
func (t *Transaction) Deactivate(features ...string) *Transaction {
	t.ops = append(t.ops, operation{typ: opDeactivate, features: features})
	return t
}

// Add queues a raw operation, keeping whatever type string the caller
// supplied. Decoded batches land here; an unrecognized type survives as
// data and is skipped at commit time.
func (t *Transaction) Add(typ string, value store.Value, features ...string) *Transaction {
	t.ops = append(t.ops, operation{typ: opType(typ), features: features, value: value})
	return t
}

// OnFailure registers a handler called with (error, identity) when a commit
// fails, before the error is returned to the caller.
func (t *Transaction) OnFailure(h FailureHandler) *Transaction {
	t.onFailure = h
	return t
}

// Features returns every feature name referenced by the queued operations,
// in first-reference order.
func (t *Transaction) Features() []string {
	seen := make(map[string]bool)
	var out []string
	for _, op := range t.ops {
		for _, f := range op.features {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// Commit captures the baseline for every referenced feature, then applies
// the operations in declared order. If any store write fails, every feature
// already touched in this commit is reverted to its baseline, the OnFailure
// handler (if any) runs, and the original error is returned wrapped.
//
// Operations of an unknown type are skipped: their declared features keep
// whatever state they had, which tolerates batches produced by newer or
// older writers.
func (t *Transaction) Commit(ctx context.Context, id identity.Identity) error {
	if err := t.capture(ctx, id); err != nil {
		return fmt.Errorf("capture initial state: %w", err)
	}

	var applied []string
	for _, op := range t.ops {
		for _, feature := range op.features {
			var err error
			switch op.typ {
			case opActivate:
				err = t.st.Set(ctx, feature, id.Kind, id.ID, op.value)
			case opDeactivate:
				err = t.st.Set(ctx, feature, id.Kind, id.ID, false)
			default:
				continue
			}
			if err != nil {
				t.revert(ctx, id, applied)
				if t.onFailure != nil {
					t.onFailure(err, id)
				}
				return fmt.Errorf("commit %s %q: %w", op.typ, feature, err)
			}
			applied = append(applied, feature)
		}
	}
	return nil
}

// Rollback restores every captured feature to its last-commit baseline.
// A no-op before the first commit. Callable even after a successful commit.
func (t *Transaction) Rollback(ctx context.Context, id identity.Identity) error {
	if t.baseline == nil {
		return nil
	}
	for feature, base := range t.baseline {
		if err := t.restore(ctx, id, feature, base); err != nil {
			return fmt.Errorf("rollback %q: %w", feature, err)
		}
	}
	return nil
}

// capture snapshots the current stored value (or absence) of every feature
// referenced by the batch, replacing any baseline from a previous commit.
func (t *Transaction) capture(ctx context.Context, id identity.Identity) error {
	baseline := make(map[string]captured)
	for _, feature := range t.Features() {
		v, ok, err := t.st.Get(ctx, feature, id.Kind, id.ID)
		if err != nil {
			return err
		}
		baseline[feature] = captured{value: v, present: ok}
	}
	t.baseline = baseline
	return nil
}

// revert undoes the features applied so far in a failing commit. Best
// effort: a revert failure is logged, the original commit error still wins.
func (t *Transaction) revert(ctx context.Context, id identity.Identity, applied []string) {
	for i := len(applied) - 1; i >= 0; i-- {
		feature := applied[i]
		if err := t.restore(ctx, id, feature, t.baseline[feature]); err != nil {
			log.Printf("txn: revert of %q for %s failed: %v", feature, id, err)
		}
	}
}

// restore puts one feature back to its captured baseline: Set for a value
// that existed, Forget for one that didn't.
func (t *Transaction) restore(ctx context.Context, id identity.Identity, feature string, base captured) error {
	if base.present {
		return t.st.Set(ctx, feature, id.Kind, id.ID, base.value)
	}
	return t.st.Forget(ctx, feature, id.Kind, id.ID)
}
