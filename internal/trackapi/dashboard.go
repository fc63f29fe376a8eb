package trackapi

import (
	"net/http"

	"github.com/linnemanlabs/trackwatch/internal/hardware"
)

type statsResponse struct {
	ActiveHardware int `json:"active_hardware"`
	FaultyHardware int `json:"faulty_hardware"`
	TotalAlerts    int `json:"total_alerts"`
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	active, faulty := a.hardware.Counts()
	writeJSON(w, http.StatusOK, statsResponse{
		ActiveHardware: active,
		FaultyHardware: faulty,
		TotalAlerts:    a.alerts.Count(r.Context()),
	})
}

func (a *API) handleHardwareSearch(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	lng, err := queryFloat(r, "lng")
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	radius := hardware.DefaultRadiusKm
	if r.URL.Query().Get("radius_km") != "" {
		if radius, err = queryFloat(r, "radius_km"); err != nil {
			a.writeError(w, r, err, "")
			return
		}
	}
	writeJSON(w, http.StatusOK, a.hardware.Search(lat, lng, radius))
}
