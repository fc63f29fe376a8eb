package trackapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/trackwatch/internal/incident"
)

func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.alerts.List(r.Context()))
}

func (a *API) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var n incident.NewAlert
	if err := decodeJSON(r, &n); err != nil {
		a.writeError(w, r, err, "")
		return
	}
	al, err := a.alerts.Create(r.Context(), n)
	if err != nil {
		a.writeError(w, r, err, "", "alert_id", n.ID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"id":      al.ID,
		"alert":   al,
	})
}

func (a *API) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.alerts.Acknowledge(r.Context(), id); err != nil {
		a.writeError(w, r, err, "Alert not found", "alert_id", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}
