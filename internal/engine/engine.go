// Package engine ties the state core together: explicit-identity reads and
// writes against a feature store, deterministic rollout and variant
// assignment, scoped resolution, dependency gating, and mutation hooks.
//
// Every operation is a function of its inputs plus the externally-owned
// store: the engine holds no background workers and never blocks except on
// the store call it delegates to, so independent contexts can be evaluated
// in parallel without synchronization.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/TimurManjosov/flagstate/internal/assign"
	"github.com/TimurManjosov/flagstate/internal/deps"
	"github.com/TimurManjosov/flagstate/internal/identity"
	"github.com/TimurManjosov/flagstate/internal/scope"
	"github.com/TimurManjosov/flagstate/internal/snapshot"
	"github.com/TimurManjosov/flagstate/internal/store"
	"github.com/TimurManjosov/flagstate/internal/txn"
)

// ErrScopedUnsupported is returned when a scoped operation hits a store
// that doesn't implement store.ScopedStore.
var ErrScopedUnsupported = errors.New("store does not support scoped activations")

// ErrReservedFeature is returned when a caller tries to mutate a feature
// name under the engine's reserved bookkeeping prefix.
var ErrReservedFeature = errors.New("feature name is reserved for internal use")

// Mutation describes one applied state change, delivered to hooks.
type Mutation struct {
	Feature  string
	Identity identity.Identity
	Op       string // "activate", "deactivate", "forget"
	Value    store.Value
}

// MutationHook observes applied writes. Hooks run synchronously after the
// store write succeeds; the surrounding system wires them to concerns like
// snapshot capture or event dispatch.
type MutationHook func(Mutation)

// Engine is the feature-flag state engine facade.
type Engine struct {
	st   store.Store
	salt string

	mu    sync.RWMutex
	hooks []MutationHook
}

// New creates an engine over the given store. Salt seeds deterministic
// bucketing for specs that don't carry their own seed; it must stay stable
// across restarts or bucket assignments reshuffle.
func New(st store.Store, salt string) *Engine {
	return &Engine{st: st, salt: salt}
}

// Store exposes the underlying store for collaborators (snapshot manager,
// transactions built elsewhere).
func (e *Engine) Store() store.Store { return e.st }

// OnMutation registers a hook invoked after every applied write.
func (e *Engine) OnMutation(h MutationHook) {
	e.mu.Lock()
	e.hooks = append(e.hooks, h)
	e.mu.Unlock()
}

func (e *Engine) emit(m Mutation) {
	e.mu.RLock()
	hooks := e.hooks
	e.mu.RUnlock()
	for _, h := range hooks {
		h(m)
	}
}

// ---- read path ----

// Value returns the stored value for (feature, identity). Undefined
// features resolve to nil, never an error.
func (e *Engine) Value(ctx context.Context, feature string, id identity.Identity) (store.Value, error) {
	v, _, err := e.st.Get(ctx, feature, id.Kind, id.ID)
	return v, err
}

// IsActive reports whether the feature is active for the identity: the
// truthiness of the stored value, inactive when nothing is stored.
func (e *Engine) IsActive(ctx context.Context, feature string, id identity.Identity) (bool, error) {
	v, ok, err := e.st.Get(ctx, feature, id.Kind, id.ID)
	if err != nil || !ok {
		return false, err
	}
	return store.IsActive(v), nil
}

// AllFor returns the full feature-value map stored for the identity.
func (e *Engine) AllFor(ctx context.Context, id identity.Identity) (map[string]store.Value, error) {
	return e.st.All(ctx, id.Kind, id.ID)
}

// Rollout evaluates a percentage rollout for the identity. An explicitly
// stored value for the feature takes precedence over the computed decision,
// so direct activation/deactivation always wins. Specs without a seed use
// the engine salt, keeping assignments stable across percentage changes.
func (e *Engine) Rollout(ctx context.Context, spec assign.RolloutSpec, id identity.Identity) (bool, error) {
	v, ok, err := e.st.Get(ctx, spec.Feature, id.Kind, id.ID)
	if err != nil {
		return false, err
	}
	if ok {
		return store.IsActive(v), nil
	}
	if spec.Seed == "" {
		spec.Seed = e.salt
	}
	return assign.Rollout(spec, id), nil
}

// Variant evaluates a weighted variant assignment for the identity. A
// stored string value for the feature is a forced variant and takes
// precedence over the computed assignment.
func (e *Engine) Variant(ctx context.Context, spec assign.VariantSpec, id identity.Identity) (string, error) {
	v, ok, err := e.st.Get(ctx, spec.Feature, id.Kind, id.ID)
	if err != nil {
		return "", err
	}
	if ok {
		if forced, isStr := v.(string); isStr && forced != "" {
			return forced, nil
		}
	}
	if spec.Seed == "" {
		spec.Seed = e.salt
	}
	return assign.Assign(spec, id), nil
}

// ValueScoped resolves the feature against a requested dimension scope.
// When scoped records exist for (feature, kind) the scope matcher picks the
// most specific match; when none exist, resolution falls back to plain
// per-context storage, bypassing the matcher entirely.
func (e *Engine) ValueScoped(ctx context.Context, feature string, id identity.Identity, requested map[string]string) (store.Value, bool, error) {
	ss, ok := e.st.(store.ScopedStore)
	if ok {
		records, err := ss.GetScoped(ctx, feature, id.Kind)
		if err != nil {
			return nil, false, err
		}
		if len(records) > 0 {
			v, matched := scope.Resolve(records, requested, id.Kind)
			return v, matched, nil
		}
	}
	v, present, err := e.st.Get(ctx, feature, id.Kind, id.ID)
	return v, present, err
}

// ---- write path ----

// Activate stores true for (feature, identity).
func (e *Engine) Activate(ctx context.Context, feature string, id identity.Identity) error {
	return e.ActivateWith(ctx, feature, id, true)
}

// ActivateWith stores an explicit value for (feature, identity).
func (e *Engine) ActivateWith(ctx context.Context, feature string, id identity.Identity, value store.Value) error {
	if err := checkName(feature); err != nil {
		return err
	}
	if err := e.st.Set(ctx, feature, id.Kind, id.ID, value); err != nil {
		return err
	}
	e.emit(Mutation{Feature: feature, Identity: id, Op: "activate", Value: value})
	return nil
}

// Deactivate stores false for (feature, identity).
func (e *Engine) Deactivate(ctx context.Context, feature string, id identity.Identity) error {
	if err := checkName(feature); err != nil {
		return err
	}
	if err := e.st.Set(ctx, feature, id.Kind, id.ID, false); err != nil {
		return err
	}
	e.emit(Mutation{Feature: feature, Identity: id, Op: "deactivate", Value: false})
	return nil
}

// Forget removes any stored value for (feature, identity).
func (e *Engine) Forget(ctx context.Context, feature string, id identity.Identity) error {
	if err := checkName(feature); err != nil {
		return err
	}
	if err := e.st.Forget(ctx, feature, id.Kind, id.ID); err != nil {
		return err
	}
	e.emit(Mutation{Feature: feature, Identity: id, Op: "forget"})
	return nil
}

// ActivateScoped stores a scoped activation for the feature under the
// identity's kind. Requires a store implementing ScopedStore.
func (e *Engine) ActivateScoped(ctx context.Context, feature string, id identity.Identity, constraints scope.Constraints, value store.Value) error {
	if err := checkName(feature); err != nil {
		return err
	}
	ss, ok := e.st.(store.ScopedStore)
	if !ok {
		return ErrScopedUnsupported
	}
	if err := ss.SetScoped(ctx, feature, id.Kind, constraints, value); err != nil {
		return err
	}
	e.emit(Mutation{Feature: feature, Identity: id, Op: "activate", Value: value})
	return nil
}

// ActivateGated activates the feature only when every prerequisite is
// already active for the identity. On failure nothing is written and the
// error lists every missing prerequisite.
func (e *Engine) ActivateGated(ctx context.Context, feature string, prerequisites []string, id identity.Identity) error {
	if err := deps.Check(ctx, e, feature, prerequisites, id); err != nil {
		return err
	}
	return e.Activate(ctx, feature, id)
}

// Cascade runs a cascade plan against this engine.
func (e *Engine) Cascade(ctx context.Context, plan deps.Plan, id identity.Identity) error {
	return plan.Run(ctx, e, id)
}

// NewTransaction returns an empty mutation transaction bound to the
// engine's store. Committed writes bypass engine hooks; wire the
// transaction's OnFailure handler for failure observation.
func (e *Engine) NewTransaction() *txn.Transaction {
	return txn.New(e.st)
}

func checkName(feature string) error {
	if len(feature) >= len(snapshot.ReservedPrefix) &&
		feature[:len(snapshot.ReservedPrefix)] == snapshot.ReservedPrefix {
		return fmt.Errorf("%w: %s", ErrReservedFeature, feature)
	}
	return nil
}
