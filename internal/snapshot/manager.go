// Package snapshot captures and restores point-in-time maps of a context's
// feature state. Snapshots are scoped to one identity, exclude reserved
// bookkeeping names, and age out under a retention window.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TimurManjosov/flagstate/internal/identity"
	"github.com/TimurManjosov/flagstate/internal/store"
)

// ReservedPrefix marks engine bookkeeping features. Names carrying it are
// never captured into snapshots.
const ReservedPrefix = "__"

// ErrSnapshotNotFound is returned when a snapshot id does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is a point-in-time copy of one context's feature-value map.
type Snapshot struct {
	ID        string                 `json:"id"`
	Label     string                 `json:"label"`
	Kind      string                 `json:"kind"`
	ContextID string                 `json:"contextId"`
	CreatedAt time.Time              `json:"createdAt"`
	Features  map[string]store.Value `json:"features"`
}

// Manager owns the snapshot map and the store it captures from.
// Snapshots live in the manager itself; persistence beyond process lifetime
// is a collaborator concern.
type Manager struct {
	st store.Store

	// RetentionDays bounds snapshot age for Prune. 0 disables pruning
	// entirely; it is an explicit "off" switch, not "prune everything".
	RetentionDays int

	// ChunkSize bounds how many snapshots a single Prune pass deletes.
	ChunkSize int

	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// NewManager creates a snapshot manager over the given store.
func NewManager(st store.Store, retentionDays, chunkSize int) *Manager {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	return &Manager{
		st:            st,
		RetentionDays: retentionDays,
		ChunkSize:     chunkSize,
		snapshots:     make(map[string]*Snapshot),
	}
}

// Capture copies the context's current feature map into a new snapshot,
// skipping reserved names. When label is empty an auto-generated one is
// used.
func (m *Manager) Capture(ctx context.Context, id identity.Identity, label string) (*Snapshot, error) {
	all, err := m.st.All(ctx, id.Kind, id.ID)
	if err != nil {
		return nil, fmt.Errorf("capture state for %s: %w", id, err)
	}

	features := make(map[string]store.Value, len(all))
	for feature, v := range all {
		if strings.HasPrefix(feature, ReservedPrefix) {
			continue
		}
		features[feature] = v
	}

	now := time.Now().UTC()
	if label == "" {
		label = "snapshot-" + now.Format("20060102-150405")
	}

	snap := &Snapshot{
		ID:        uuid.NewString(),
		Label:     label,
		Kind:      id.Kind,
		ContextID: id.ID,
		CreatedAt: now,
		Features:  features,
	}

	m.mu.Lock()
	m.snapshots[snap.ID] = snap
	m.mu.Unlock()
	return snap, nil
}

// Restore writes every feature in the snapshot back onto the store.
// Features not present in the snapshot are untouched.
func (m *Manager) Restore(ctx context.Context, snapID string, id identity.Identity) error {
	return m.restore(ctx, snapID, id, nil)
}

// RestorePartial restores only the named subset of the snapshot's features.
// Names absent from the snapshot are skipped.
func (m *Manager) RestorePartial(ctx context.Context, snapID string, id identity.Identity, features []string) error {
	subset := make(map[string]bool, len(features))
	for _, f := range features {
		subset[f] = true
	}
	return m.restore(ctx, snapID, id, subset)
}

func (m *Manager) restore(ctx context.Context, snapID string, id identity.Identity, subset map[string]bool) error {
	snap, err := m.Get(snapID)
	if err != nil {
		return err
	}
	for feature, v := range snap.Features {
		if subset != nil && !subset[feature] {
			continue
		}
		if err := m.st.Set(ctx, feature, id.Kind, id.ID, v); err != nil {
			return fmt.Errorf("restore %q: %w", feature, err)
		}
	}
	return nil
}

// Get returns the snapshot with the given id.
func (m *Manager) Get(snapID string) (*Snapshot, error) {
	m.mu.RLock()
	snap, ok := m.snapshots[snapID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapID)
	}
	return snap, nil
}

// List returns the context's snapshots, newest first.
func (m *Manager) List(id identity.Identity) []*Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Snapshot
	for _, snap := range m.snapshots {
		if snap.Kind == id.Kind && snap.ContextID == id.ID {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Count returns how many snapshots the manager currently holds.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}

// Delete removes a snapshot by id.
func (m *Manager) Delete(snapID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snapshots[snapID]; !ok {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapID)
	}
	delete(m.snapshots, snapID)
	return nil
}

// ClearAll removes every snapshot for the given context and returns how
// many were deleted.
func (m *Manager) ClearAll(id identity.Identity) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for sid, snap := range m.snapshots {
		if snap.Kind == id.Kind && snap.ContextID == id.ID {
			delete(m.snapshots, sid)
			n++
		}
	}
	return n
}

// Prune deletes snapshots older than the retention window, at most
// ChunkSize per call so a huge backlog never turns into one unbounded
// pass. Returns the number deleted. A retention of 0 disables pruning.
func (m *Manager) Prune(now time.Time) int {
	if m.RetentionDays <= 0 {
		return 0
	}
	cutoff := now.Add(-time.Duration(m.RetentionDays) * 24 * time.Hour)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Collect expired ids oldest-first so repeated calls drain in age order.
	var expired []*Snapshot
	for _, snap := range m.snapshots {
		if snap.CreatedAt.Before(cutoff) {
			expired = append(expired, snap)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].CreatedAt.Before(expired[j].CreatedAt) })

	n := 0
	for _, snap := range expired {
		if n >= m.ChunkSize {
			break
		}
		delete(m.snapshots, snap.ID)
		n++
	}
	return n
}
