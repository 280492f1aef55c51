package store

import (
	"context"

	"github.com/TimurManjosov/flagstate/internal/scope"
)

// Value is the stored value for a (feature, context) pair. It may be a
// boolean, a scalar, or a structured mapping; the engine only interprets
// truthiness to decide whether a feature is active.
type Value = any

// Store defines the interface for feature state persistence.
// Implementations must be thread-safe; concurrent writes to the same
// (feature, kind, id) key must be last-write-wins with no torn writes —
// transactional rollback assumes a write either fully succeeds or fully
// fails.
type Store interface {
	// Get retrieves the value stored for (feature, kind, id).
	// An undefined feature is (nil, false, nil), never an error.
	Get(ctx context.Context, feature, kind, id string) (Value, bool, error)

	// Set stores a value for (feature, kind, id), overwriting atomically
	// per key.
	Set(ctx context.Context, feature, kind, id string, value Value) error

	// Forget removes the stored value. Idempotent: no error if absent.
	Forget(ctx context.Context, feature, kind, id string) error

	// All returns the full feature->value map for a context.
	// Returns an empty map if nothing is stored.
	All(ctx context.Context, kind, id string) (map[string]Value, error)

	// Close releases any resources held by the store.
	Close() error
}

// ScopedStore is an optional extension for stores that can persist
// activations carrying dimension constraints. Only the scope matcher reads
// these records; plain per-context storage bypasses them entirely.
type ScopedStore interface {
	// SetScoped stores a scoped activation for a feature under the given kind.
	SetScoped(ctx context.Context, feature, kind string, constraints scope.Constraints, value Value) error

	// GetScoped returns every scoped record stored for (feature, kind).
	GetScoped(ctx context.Context, feature, kind string) ([]scope.Record, error)
}

// IsActive interprets a stored value as active or inactive.
// nil, false, zero numbers, empty strings, and empty collections are
// inactive; everything else is active.
func IsActive(v Value) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case int:
		return val != 0
	case int32:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
