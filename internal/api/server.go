package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/TimurManjosov/flagstate/internal/assign"
	"github.com/TimurManjosov/flagstate/internal/deps"
	"github.com/TimurManjosov/flagstate/internal/engine"
	"github.com/TimurManjosov/flagstate/internal/identity"
	"github.com/TimurManjosov/flagstate/internal/snapshot"
	"github.com/TimurManjosov/flagstate/internal/store"
	"github.com/TimurManjosov/flagstate/internal/telemetry"
)

// Server is the HTTP adapter over the state engine. It is deliberately
// thin: identity resolution, engine calls, JSON in and out.
type Server struct {
	eng         *engine.Engine
	snaps       *snapshot.Manager
	adminAPIKey string
}

func NewServer(eng *engine.Engine, snaps *snapshot.Manager, adminKey string) *Server {
	return &Server{eng: eng, snaps: snaps, adminAPIKey: adminKey}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))
	r.Use(telemetry.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// read path
	r.Get("/v1/features/{key}/state", s.handleState)
	r.Get("/v1/contexts/{kind}/{id}/features", s.handleContextFeatures)
	r.Post("/v1/features/{key}/rollout", s.handleRollout)
	r.Post("/v1/features/{key}/variant", s.handleVariant)

	// write path (admin)
	r.Post("/v1/features/{key}/activate", s.authAdmin(s.handleActivate))
	r.Post("/v1/features/{key}/deactivate", s.authAdmin(s.handleDeactivate))
	r.Delete("/v1/features/{key}", s.authAdmin(s.handleForget))
	r.Post("/v1/transactions", s.authAdmin(s.handleTransaction))

	// snapshots (admin)
	r.Post("/v1/snapshots", s.authAdmin(s.handleSnapshotCapture))
	r.Get("/v1/snapshots", s.authAdmin(s.handleSnapshotList))
	r.Post("/v1/snapshots/{id}/restore", s.authAdmin(s.handleSnapshotRestore))
	r.Delete("/v1/snapshots/{id}", s.authAdmin(s.handleSnapshotDelete))

	return r
}

// contextParams are the identity fields shared by most request bodies.
type contextParams struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (c contextParams) resolve() (identity.Identity, error) {
	if c.Kind == "" {
		return identity.Resolve(c.ID)
	}
	return identity.Resolve(identity.Identity{Kind: c.Kind, ID: c.ID})
}

func identityFromQuery(r *http.Request) (identity.Identity, error) {
	return contextParams{
		Kind: r.URL.Query().Get("kind"),
		ID:   r.URL.Query().Get("id"),
	}.resolve()
}

// ---- read handlers ----

type stateResponse struct {
	Feature string      `json:"feature"`
	Active  bool        `json:"active"`
	Value   store.Value `json:"value,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	id, err := identityFromQuery(r)
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidContext, err.Error())
		return
	}

	// Scoped resolution when dimension params are present.
	requested := scopeFromQuery(r)
	var value store.Value
	if len(requested) > 0 {
		value, _, err = s.eng.ValueScoped(r.Context(), key, id, requested)
		telemetry.Evaluations.WithLabelValues("scoped").Inc()
	} else {
		value, err = s.eng.Value(r.Context(), key, id)
		telemetry.Evaluations.WithLabelValues("active").Inc()
	}
	if err != nil {
		InternalError(w, r, "state lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, stateResponse{Feature: key, Active: store.IsActive(value), Value: value})
}

// scopeFromQuery extracts dimension constraints from scope.<dim> params.
func scopeFromQuery(r *http.Request) map[string]string {
	requested := make(map[string]string)
	for param, vals := range r.URL.Query() {
		if dim, ok := strings.CutPrefix(param, "scope."); ok && len(vals) > 0 {
			requested[dim] = vals[0]
		}
	}
	return requested
}

func (s *Server) handleContextFeatures(w http.ResponseWriter, r *http.Request) {
	id, err := identity.Resolve(identity.Identity{
		Kind: chi.URLParam(r, "kind"),
		ID:   chi.URLParam(r, "id"),
	})
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidContext, err.Error())
		return
	}

	features, err := s.eng.AllFor(r.Context(), id)
	if err != nil {
		InternalError(w, r, "state lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": id.Kind, "id": id.ID, "features": features})
}

type rolloutRequest struct {
	contextParams
	Percentage int    `json:"percentage"`
	Seed       string `json:"seed,omitempty"`
}

func (s *Server) handleRollout(w http.ResponseWriter, r *http.Request) {
	var req rolloutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}
	id, err := req.resolve()
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidContext, err.Error())
		return
	}

	spec := assign.NewRolloutSpec(chi.URLParam(r, "key"), req.Percentage, req.Seed)
	included, err := s.eng.Rollout(r.Context(), spec, id)
	if err != nil {
		InternalError(w, r, "rollout evaluation failed")
		return
	}
	telemetry.Evaluations.WithLabelValues("rollout").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"feature": spec.Feature, "included": included})
}

type variantRequest struct {
	contextParams
	Variants []assign.Variant `json:"variants"`
	Seed     string           `json:"seed,omitempty"`
}

func (s *Server) handleVariant(w http.ResponseWriter, r *http.Request) {
	var req variantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}
	id, err := req.resolve()
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidContext, err.Error())
		return
	}

	spec, err := assign.NewVariantSpec(chi.URLParam(r, "key"), req.Variants, req.Seed)
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidVariants, err.Error())
		return
	}
	variant, err := s.eng.Variant(r.Context(), spec, id)
	if err != nil {
		InternalError(w, r, "variant evaluation failed")
		return
	}
	telemetry.Evaluations.WithLabelValues("variant").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"feature": spec.Feature, "variant": variant})
}

// ---- write handlers ----

type activateRequest struct {
	contextParams
	Value         store.Value `json:"value,omitempty"`
	Prerequisites []string    `json:"prerequisites,omitempty"`
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}
	id, err := req.resolve()
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidContext, err.Error())
		return
	}
	key := chi.URLParam(r, "key")

	if len(req.Prerequisites) > 0 {
		err = s.eng.ActivateGated(r.Context(), key, req.Prerequisites, id)
	} else if req.Value != nil {
		err = s.eng.ActivateWith(r.Context(), key, id, req.Value)
	} else {
		err = s.eng.Activate(r.Context(), key, id)
	}
	if err != nil {
		s.writeMutationError(w, r, err)
		return
	}
	telemetry.Mutations.WithLabelValues("activate").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	var req contextParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}
	id, err := req.resolve()
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidContext, err.Error())
		return
	}

	if err := s.eng.Deactivate(r.Context(), chi.URLParam(r, "key"), id); err != nil {
		s.writeMutationError(w, r, err)
		return
	}
	telemetry.Mutations.WithLabelValues("deactivate").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromQuery(r)
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidContext, err.Error())
		return
	}

	if err := s.eng.Forget(r.Context(), chi.URLParam(r, "key"), id); err != nil {
		s.writeMutationError(w, r, err)
		return
	}
	telemetry.Mutations.WithLabelValues("forget").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type transactionRequest struct {
	contextParams
	Operations []struct {
		Type     string      `json:"type"`
		Features []string    `json:"features"`
		Value    store.Value `json:"value,omitempty"`
	} `json:"operations"`
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}
	id, err := req.resolve()
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidContext, err.Error())
		return
	}
	if len(req.Operations) == 0 {
		BadRequestError(w, r, ErrCodeValidation, "operations are required")
		return
	}

	tx := s.eng.NewTransaction()
	for _, op := range req.Operations {
		value := op.Value
		if value == nil && op.Type == "activate" {
			value = true
		}
		tx.Add(op.Type, value, op.Features...)
	}
	tx.OnFailure(func(error, identity.Identity) {
		telemetry.TxnRollbacks.Inc()
	})

	if err := tx.Commit(r.Context(), id); err != nil {
		InternalError(w, r, "transaction failed and was rolled back: "+err.Error())
		return
	}
	telemetry.Mutations.WithLabelValues("transaction").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "features": tx.Features()})
}

// writeMutationError maps engine write errors onto HTTP responses.
func (s *Server) writeMutationError(w http.ResponseWriter, r *http.Request, err error) {
	var missing *deps.MissingPrerequisitesError
	switch {
	case errors.As(err, &missing):
		ConflictError(w, r, missing.Error(), missing.Missing)
	case errors.Is(err, engine.ErrReservedFeature):
		BadRequestError(w, r, ErrCodeReservedFeature, err.Error())
	default:
		InternalError(w, r, "mutation failed")
	}
}

// ---- snapshot handlers ----

type snapshotCaptureRequest struct {
	contextParams
	Label string `json:"label,omitempty"`
}

func (s *Server) handleSnapshotCapture(w http.ResponseWriter, r *http.Request) {
	var req snapshotCaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}
	id, err := req.resolve()
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidContext, err.Error())
		return
	}

	snap, err := s.snaps.Capture(r.Context(), id, req.Label)
	if err != nil {
		InternalError(w, r, "snapshot capture failed")
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleSnapshotList(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromQuery(r)
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidContext, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": s.snaps.List(id)})
}

type snapshotRestoreRequest struct {
	contextParams
	Features []string `json:"features,omitempty"`
}

func (s *Server) handleSnapshotRestore(w http.ResponseWriter, r *http.Request) {
	var req snapshotRestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}
	id, err := req.resolve()
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidContext, err.Error())
		return
	}

	snapID := chi.URLParam(r, "id")
	if len(req.Features) > 0 {
		err = s.snaps.RestorePartial(r.Context(), snapID, id, req.Features)
	} else {
		err = s.snaps.Restore(r.Context(), snapID, id)
	}
	if err != nil {
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			NotFoundError(w, r, err.Error())
			return
		}
		InternalError(w, r, "snapshot restore failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSnapshotDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.snaps.Delete(chi.URLParam(r, "id")); err != nil {
		NotFoundError(w, r, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ---- middleware & helpers ----

func (s *Server) authAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
		if got == "" {
			UnauthorizedError(w, r, "missing bearer token")
			return
		}
		// constant-time compare
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminAPIKey)) != 1 {
			ForbiddenError(w, r, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
