// Package deps validates prerequisite-feature activation before a dependent
// feature may be activated, and composes cascading activate/deactivate plans.
package deps

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/TimurManjosov/flagstate/internal/identity"
)

// ActiveChecker is the read path the resolver consults: plain active or
// inactive per context, not scope-aware.
type ActiveChecker interface {
	IsActive(ctx context.Context, feature string, id identity.Identity) (bool, error)
}

// Mutator is the write path cascades run against.
type Mutator interface {
	Activate(ctx context.Context, feature string, id identity.Identity) error
	Deactivate(ctx context.Context, feature string, id identity.Identity) error
}

// MissingPrerequisitesError reports every unmet prerequisite for a dependent
// feature, not just the first.
type MissingPrerequisitesError struct {
	Dependent string
	Missing   []string
}

func (e *MissingPrerequisitesError) Error() string {
	return fmt.Sprintf("feature %q has missing prerequisites: %s",
		e.Dependent, strings.Join(e.Missing, ", "))
}

// Check confirms every prerequisite is active for the given context.
// It fails atomically: nothing is activated, and the returned error lists
// all missing prerequisites. A feature listed as its own prerequisite is
// always reported missing — a self-reference satisfied trivially could mask
// a cyclic dependency bug.
func Check(ctx context.Context, reader ActiveChecker, dependent string, prerequisites []string, id identity.Identity) error {
	var missing []string
	for _, prereq := range prerequisites {
		if prereq == dependent {
			missing = append(missing, prereq)
			continue
		}
		active, err := reader.IsActive(ctx, prereq, id)
		if err != nil {
			return fmt.Errorf("check prerequisite %q: %w", prereq, err)
		}
		if !active {
			missing = append(missing, prereq)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingPrerequisitesError{Dependent: dependent, Missing: missing}
	}
	return nil
}

// Plan is an immutable cascade: a primary feature plus dependents applied in
// a fixed order. Build one with Cascade and a chain call; each chain step
// returns a new value, so plans can be shared freely.
type Plan struct {
	primary    string
	dependents []string
	deactivate bool
}

// Cascade starts a cascade plan for a primary feature.
func Cascade(primary string) Plan {
	return Plan{primary: primary}
}

// Activating returns a plan that activates the primary first, then each
// dependent in order.
func (p Plan) Activating(dependents ...string) Plan {
	return Plan{primary: p.primary, dependents: append([]string(nil), dependents...)}
}

// Deactivating returns a plan that deactivates the dependents first (in
// order), then the primary. Tearing down in the reverse of activation order
// avoids a window with active dependents under a deactivated primary.
func (p Plan) Deactivating(dependents ...string) Plan {
	return Plan{primary: p.primary, dependents: append([]string(nil), dependents...), deactivate: true}
}

// Run applies the cascade against the mutator for the given context.
func (p Plan) Run(ctx context.Context, m Mutator, id identity.Identity) error {
	if p.deactivate {
		for _, dep := range p.dependents {
			if err := m.Deactivate(ctx, dep, id); err != nil {
				return err
			}
		}
		return m.Deactivate(ctx, p.primary, id)
	}

	if err := m.Activate(ctx, p.primary, id); err != nil {
		return err
	}
	for _, dep := range p.dependents {
		if err := m.Activate(ctx, dep, id); err != nil {
			return err
		}
	}
	return nil
}
