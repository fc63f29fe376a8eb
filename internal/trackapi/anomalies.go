package trackapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/trackwatch/internal/incident"
)

func (a *API) handleListAnomalies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.anomalies.List(r.Context()))
}

func (a *API) handleCreateAnomaly(w http.ResponseWriter, r *http.Request) {
	var n incident.NewAnomaly
	if err := decodeJSON(r, &n); err != nil {
		a.writeError(w, r, err, "")
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("trackwatch.anomaly.id", n.ID),
		attribute.String("trackwatch.anomaly.type", n.Type),
	)

	an, err := a.anomalies.Create(r.Context(), n)
	if err != nil {
		a.writeError(w, r, err, "", "anomaly_id", n.ID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"id":      an.ID,
		"anomaly": an,
	})
}

func (a *API) handleDeleteAnomaly(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("trackwatch.anomaly.id", id))

	if err := a.anomalies.Delete(r.Context(), id); err != nil {
		a.writeError(w, r, err, "Anomaly not found", "anomaly_id", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

func (a *API) handleResolveAnomaly(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.anomalies.Resolve(r.Context(), id); err != nil {
		a.writeError(w, r, err, "Anomaly not found", "anomaly_id", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

func (a *API) handleClearAnomalies(w http.ResponseWriter, r *http.Request) {
	if err := a.anomalies.ClearAll(r.Context()); err != nil {
		a.writeError(w, r, err, "")
		return
	}
	a.logger.Info(r.Context(), "all anomalies and alerts cleared")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "All anomalies and alerts cleared",
	})
}

// handlePurgeAlerts removes every alert linked to an anomaly. It completes a
// cascade left incomplete by a failed delete and is safe to repeat.
func (a *API) handlePurgeAlerts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := a.alerts.PurgeByAnomaly(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err, "", "anomaly_id", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id, "removed": removed})
}
