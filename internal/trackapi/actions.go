package trackapi

import (
	"net/http"

	"github.com/linnemanlabs/trackwatch/internal/incident"
)

type notifyRequest struct {
	AlertID    string              `json:"alert_id"`
	Action     incident.ActionType `json:"action"`
	OperatorID string              `json:"operator_id"`
}

func (a *API) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err, "")
		return
	}
	act, err := a.actions.Record(r.Context(), req.AlertID, req.Action, req.OperatorID)
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Train Driver Notified: " + string(act.Type),
	})
}

func (a *API) handleActionHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.actions.List())
}
