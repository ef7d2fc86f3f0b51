package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campusguard/argus/internal/forecast"
)

// DefaultTimelineDays is the history window when ?days is absent.
const DefaultTimelineDays = 7

// Timeline handles GET /entities/{id}/timeline. days=0 returns the full history.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", DefaultTimelineDays)
	if err != nil {
		writeError(w, err)
		return
	}

	var since time.Time
	if days > 0 {
		since = h.now().UTC().AddDate(0, 0, -days)
	}

	tl, err := h.deps.Timelines.Build(r.Context(), chi.URLParam(r, "id"), since)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"timeline":    tl,
		"period_days": days,
	})
}

// NextLocation handles GET /entities/{id}/predictions/next-location.
func (h *Handler) NextLocation(w http.ResponseWriter, r *http.Request) {
	fc, err := h.deps.Monitor.PredictNextLocation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

// Anomalies handles GET /entities/{id}/anomalies.
func (h *Handler) Anomalies(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Monitor.DetectAnomalies(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Inferences handles GET /entities/{id}/inferences.
func (h *Handler) Inferences(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Monitor.InferMissingData(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Provenance handles GET /entities/{id}/provenance.
func (h *Handler) Provenance(w http.ResponseWriter, r *http.Request) {
	prov, err := h.deps.Resolver.Provenance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prov)
}

// Links handles GET /entities/{id}/links.
func (h *Handler) Links(w http.ResponseWriter, r *http.Request) {
	links, err := h.deps.Resolver.CrossSourceLinks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// Forecast handles POST /entities/{id}/forecast. An empty body forecasts the
// entity's current location now.
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	var req forecast.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	req.EntityID = chi.URLParam(r, "id")

	res, err := h.deps.Forecasts.Forecast(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
