package trackapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/linnemanlabs/trackwatch/internal/incident"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeError maps a service error onto a status code. Validation and
// conflict errors echo their message; anything else is logged and served
// as a generic 500.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error, msg string, kv ...any) {
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		writeErrorMsg(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, incident.ErrValidation), errors.Is(err, incident.ErrConflict):
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, incident.ErrNotFound):
		writeErrorMsg(w, http.StatusNotFound, msg)
	case errors.Is(err, incident.ErrCascadeIncomplete):
		a.logger.Error(r.Context(), err, "cascade incomplete", kv...)
		writeErrorMsg(w, http.StatusInternalServerError, "anomaly deleted but linked alerts could not be purged; retry DELETE /api/v1/anomalies/{id}/alerts")
	default:
		a.logger.Error(r.Context(), err, "request failed", kv...)
		writeErrorMsg(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a single JSON value from the request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON payload: %v", incident.ErrValidation, err)
	}
	return nil
}
