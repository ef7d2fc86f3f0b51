package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campusguard/argus/internal/domain"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	deps Deps
	now  func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps, now: time.Now}
}

// Health handles GET /health requests.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.deps.Version,
	})
}

// Ready handles GET /ready requests. Every configured backend must answer a ping.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{}
	ready := true

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			checks[name] = err.Error()
			ready = false
			return
		}
		checks[name] = "ok"
	}

	if h.deps.Store != nil {
		check("store", func() error { return h.deps.Store.Ping(ctx) })
	}
	if h.deps.AlertStore != nil {
		check("alert_store", func() error { return h.deps.AlertStore.Ping(ctx) })
	}
	if h.deps.Bus != nil {
		check("event_bus", func() error { return h.deps.Bus.Ping(ctx) })
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ready":  ready,
		"checks": checks,
	})
}

// ListProfiles handles GET /profiles requests.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 100)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	profiles, err := h.deps.Store.ListProfiles(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"profiles": profiles,
		"count":    len(profiles),
		"limit":    limit,
		"offset":   offset,
	})
}

// GetProfile handles GET /profiles/{id} requests.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.deps.Store.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// SearchProfiles handles GET /profiles/search requests.
func (h *Handler) SearchProfiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "q is required",
		})
		return
	}

	field := domain.SearchField(r.URL.Query().Get("field"))
	if field == "" {
		field = domain.SearchName
	}
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		writeError(w, err)
		return
	}

	profiles, err := h.deps.Store.SearchProfiles(r.Context(), field, q, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"profiles": profiles,
		"count":    len(profiles),
		"field":    field,
		"query":    q,
	})
}

// Resolve handles POST /resolve requests with any combination of identifiers.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var ids domain.Identifiers
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result, err := h.deps.Resolver.Resolve(r.Context(), ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ResolveExact handles GET /resolve requests. Identifiers that point at
// different entities answer 409 with the conflicting matches.
func (h *Handler) ResolveExact(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids := domain.Identifiers{
		CardID:     q.Get("card_id"),
		DeviceHash: q.Get("device_hash"),
		FaceID:     q.Get("face_id"),
	}

	res, err := h.deps.Resolver.ResolveExact(r.Context(), ids)
	if err != nil {
		writeError(w, err)
		return
	}

	switch res.Outcome {
	case domain.OutcomeConflict:
		writeJSON(w, http.StatusConflict, res)
	case domain.OutcomeNoMatch:
		writeJSON(w, http.StatusNotFound, res)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNoIdentifier), errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrInsufficientData):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "cannot predict",
			"reason": err.Error(),
		})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer: %w", name, domain.ErrInvalidInput)
	}
	return n, nil
}
