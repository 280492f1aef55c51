package identity

import (
	"errors"
	"testing"
)

type tenant struct {
	id string
}

func (t tenant) FlagKind() string { return "tenant" }
func (t tenant) FlagID() string   { return t.id }

func TestResolve_Identity(t *testing.T) {
	want := Identity{Kind: "org", ID: "42"}
	got, err := Resolve(want)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestResolve_Subject(t *testing.T) {
	got, err := Resolve(tenant{id: "acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != "tenant" || got.ID != "acme" {
		t.Errorf("Expected tenant:acme, got %s", got)
	}
}

func TestResolve_String(t *testing.T) {
	got, err := Resolve("user-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != "user" {
		t.Errorf("Expected default kind 'user', got %q", got.Kind)
	}
	if got.ID != "user-123" {
		t.Errorf("Expected id 'user-123', got %q", got.ID)
	}
}

func TestResolve_Int(t *testing.T) {
	got, err := Resolve(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "7" {
		t.Errorf("Expected id '7', got %q", got.ID)
	}
}

func TestResolve_Unsupported(t *testing.T) {
	_, err := Resolve(3.14)
	if !errors.Is(err, ErrUnsupportedContext) {
		t.Errorf("Expected ErrUnsupportedContext, got %v", err)
	}

	_, err = Resolve(nil)
	if !errors.Is(err, ErrUnsupportedContext) {
		t.Errorf("Expected ErrUnsupportedContext for nil, got %v", err)
	}
}

func TestResolve_EmptyID(t *testing.T) {
	_, err := Resolve("")
	if !errors.Is(err, ErrEmptyIdentity) {
		t.Errorf("Expected ErrEmptyIdentity, got %v", err)
	}

	_, err = Resolve(Identity{Kind: "user"})
	if !errors.Is(err, ErrEmptyIdentity) {
		t.Errorf("Expected ErrEmptyIdentity for missing id, got %v", err)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	// Two logically identical contexts must normalize to the same pair.
	a, _ := Resolve(tenant{id: "acme"})
	b, _ := Resolve(Identity{Kind: "tenant", ID: "acme"})
	if a != b {
		t.Errorf("Expected identical identities, got %v and %v", a, b)
	}
}

func TestDefaultKind_Override(t *testing.T) {
	SetDefaultKind("account")
	defer SetDefaultKind("user")

	got, err := Resolve("a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != "account" {
		t.Errorf("Expected kind 'account', got %q", got.Kind)
	}
}
