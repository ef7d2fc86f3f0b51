package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusguard/argus/internal/domain"
)

// ListAlerts handles GET /alerts?severity&status&limit.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	q := domain.AlertQuery{
		Severity: domain.Severity(r.URL.Query().Get("severity")),
		Status:   domain.AlertStatus(r.URL.Query().Get("status")),
		Limit:    limit,
	}

	report, err := h.deps.Alerts.Generate(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// alertStatusRequest is the optional body for PUT /alerts/{id}.
type alertStatusRequest struct {
	Status domain.AlertStatus `json:"status"`
}

// UpdateAlertStatus handles PUT /alerts/{id}. The status comes from ?status
// or, when absent, from a JSON body.
func (h *Handler) UpdateAlertStatus(w http.ResponseWriter, r *http.Request) {
	status := domain.AlertStatus(r.URL.Query().Get("status"))
	if status == "" {
		var req alertStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
		status = req.Status
	}

	rec, err := h.deps.Alerts.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
