// Package identity normalizes arbitrary resolution contexts (users, tenants,
// any principal) into a stable (kind, id) pair. That pair is the only thing
// the rest of the engine ever hashes or stores against: no other context
// attribute leaks into bucketing or storage keys.
package identity

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// ErrUnsupportedContext is returned when a value cannot be resolved into an Identity.
var ErrUnsupportedContext = errors.New("unsupported context type")

// ErrEmptyIdentity is returned when a resolved identity has an empty kind or id.
var ErrEmptyIdentity = errors.New("identity kind and id must be non-empty")

// Identity is the normalized form of a resolution context.
// Two logically identical contexts always normalize to the same Identity.
type Identity struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// String returns the kind:id form used in log lines and storage keys.
func (id Identity) String() string {
	return id.Kind + ":" + id.ID
}

// Zero reports whether the identity is the zero value.
func (id Identity) Zero() bool {
	return id.Kind == "" && id.ID == ""
}

// Subject is implemented by caller types that can identify themselves for
// feature resolution. Kind should be a stable registered alias, not a Go
// type name, so renaming a caller type never reshuffles bucket assignments.
type Subject interface {
	FlagKind() string
	FlagID() string
}

var (
	kindMu      sync.RWMutex
	defaultKind = "user"
)

// SetDefaultKind changes the kind assumed for bare string/integer contexts.
// The default is "user".
func SetDefaultKind(kind string) {
	kindMu.Lock()
	defaultKind = kind
	kindMu.Unlock()
}

// DefaultKind returns the kind assumed for bare string/integer contexts.
func DefaultKind() string {
	kindMu.RLock()
	defer kindMu.RUnlock()
	return defaultKind
}

// Resolve normalizes a context value into an Identity.
//
// Accepted inputs:
//   - Identity: returned as-is after validation
//   - Subject: resolved via FlagKind/FlagID
//   - string, int, int64: treated as an id of the default kind
//
// Anything else fails with ErrUnsupportedContext. The closed input set is
// deliberate: resolution is an explicit step implemented by callers, never
// reflection over caller types inside the engine.
func Resolve(v any) (Identity, error) {
	switch c := v.(type) {
	case Identity:
		return validate(c)
	case Subject:
		return validate(Identity{Kind: c.FlagKind(), ID: c.FlagID()})
	case string:
		return validate(Identity{Kind: DefaultKind(), ID: c})
	case int:
		return validate(Identity{Kind: DefaultKind(), ID: strconv.Itoa(c)})
	case int64:
		return validate(Identity{Kind: DefaultKind(), ID: strconv.FormatInt(c, 10)})
	default:
		return Identity{}, fmt.Errorf("%w: %T", ErrUnsupportedContext, v)
	}
}

func validate(id Identity) (Identity, error) {
	if id.Kind == "" || id.ID == "" {
		return Identity{}, ErrEmptyIdentity
	}
	return id, nil
}
