package store

import (
	"context"
	"sync"
	"time"

	"github.com/TimurManjosov/flagstate/internal/scope"
)

// MemoryStore is an in-memory implementation of Store and ScopedStore.
// It uses maps guarded by an RWMutex for thread-safe concurrent access.
// Suitable for development, testing, or single-instance deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]Value          // "feature|kind|id" -> value
	byCtx  map[string]map[string]bool // "kind|id" -> set of features
	scoped map[string][]scope.Record  // "feature|kind" -> records
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]Value),
		byCtx:  make(map[string]map[string]bool),
		scoped: make(map[string][]scope.Record),
	}
}

func valueKey(feature, kind, id string) string { return feature + "|" + kind + "|" + id }
func ctxKey(kind, id string) string            { return kind + "|" + id }
func scopedKey(feature, kind string) string    { return feature + "|" + kind }

// Get retrieves the value stored for (feature, kind, id).
func (m *MemoryStore) Get(ctx context.Context, feature, kind, id string) (Value, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[valueKey(feature, kind, id)]
	return v, ok, nil
}

// Set stores a value, overwriting any previous one for the key.
func (m *MemoryStore) Set(ctx context.Context, feature, kind, id string, value Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[valueKey(feature, kind, id)] = value

	ck := ctxKey(kind, id)
	if m.byCtx[ck] == nil {
		m.byCtx[ck] = make(map[string]bool)
	}
	m.byCtx[ck][feature] = true
	return nil
}

// Forget removes the stored value. Idempotent.
func (m *MemoryStore) Forget(ctx context.Context, feature, kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, valueKey(feature, kind, id))
	if set := m.byCtx[ctxKey(kind, id)]; set != nil {
		delete(set, feature)
	}
	return nil
}

// All returns a copy of the full feature->value map for a context.
func (m *MemoryStore) All(ctx context.Context, kind, id string) (map[string]Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.byCtx[ctxKey(kind, id)]
	result := make(map[string]Value, len(set))
	for feature := range set {
		if v, ok := m.values[valueKey(feature, kind, id)]; ok {
			result[feature] = v
		}
	}
	return result, nil
}

// SetScoped stores a scoped activation for (feature, kind).
// A record with identical constraints is replaced; otherwise appended.
func (m *MemoryStore) SetScoped(ctx context.Context, feature, kind string, constraints scope.Constraints, value Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := scope.Record{
		Constraints: constraints,
		Kind:        kind,
		Value:       value,
		WrittenAt:   time.Now().UTC(),
	}

	key := scopedKey(feature, kind)
	records := m.scoped[key]
	for i := range records {
		if sameConstraints(records[i].Constraints, constraints) {
			records[i] = rec
			return nil
		}
	}
	m.scoped[key] = append(records, rec)
	return nil
}

// GetScoped returns a copy of every scoped record for (feature, kind).
func (m *MemoryStore) GetScoped(ctx context.Context, feature, kind string) ([]scope.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.scoped[scopedKey(feature, kind)]
	out := make([]scope.Record, len(records))
	copy(out, records)
	return out, nil
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}

func sameConstraints(a, b scope.Constraints) bool {
	if len(a) != len(b) {
		return false
	}
	for dim, av := range a {
		bv, ok := b[dim]
		if !ok {
			return false
		}
		if (av == nil) != (bv == nil) {
			return false
		}
		if av != nil && *av != *bv {
			return false
		}
	}
	return true
}
