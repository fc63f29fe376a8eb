// Package hardware holds the static registry of trackside sensors used by
// the search and dashboard views.
package hardware

import (
	"math"

	"github.com/linnemanlabs/trackwatch/internal/taxonomy"
)

// KmPerDegree approximates the length of one degree of latitude.
const KmPerDegree = 111.0

// DefaultRadiusKm is used when a search gives no radius.
const DefaultRadiusKm = 1.0

// Status is the operational state of a device.
type Status string

const (
	StatusActive Status = "active"
	StatusFaulty Status = "faulty"
)

// Record is one deployed device.
type Record struct {
	ID     string
	Type   string
	Lat    float64
	Lng    float64
	Status Status
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Match is a search hit as served to clients.
type Match struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Coordinates Coordinates `json:"coordinates"`
	Status      Status      `json:"status"`
}

// Registry is an immutable device list; safe for concurrent use.
type Registry struct {
	records []Record
}

// NewRegistry copies records into a registry.
func NewRegistry(records []Record) *Registry {
	return &Registry{records: append([]Record(nil), records...)}
}

// Seed returns the devices of the reference deployment.
func Seed() []Record {
	return []Record{
		{ID: "HW-001", Type: taxonomy.OFCNode, Lat: 28.6100, Lng: 77.2000, Status: StatusActive},
		{ID: "HW-002", Type: taxonomy.ThermalCam, Lat: 28.6100, Lng: 77.2000, Status: StatusActive},
		{ID: "HW-003", Type: taxonomy.OFCNode, Lat: 28.6150, Lng: 77.2050, Status: StatusFaulty},
		{ID: "HW-004", Type: taxonomy.ThermalCam, Lat: 28.6200, Lng: 77.2100, Status: StatusActive},
	}
}

// Search returns devices within radiusKm of (lat, lng), in registry order.
// Distance is the planar approximation sqrt(dlat²+dlng²)·111 km; the radius
// is inclusive. A non-positive radius uses DefaultRadiusKm.
func (r *Registry) Search(lat, lng, radiusKm float64) []Match {
	if radiusKm <= 0 || math.IsNaN(radiusKm) {
		radiusKm = DefaultRadiusKm
	}
	out := []Match{}
	for _, rec := range r.records {
		if Distance(lat, lng, rec.Lat, rec.Lng) <= radiusKm {
			out = append(out, Match{
				ID:          rec.ID,
				Type:        rec.Type,
				Coordinates: Coordinates{Lat: rec.Lat, Lng: rec.Lng},
				Status:      rec.Status,
			})
		}
	}
	return out
}

// Distance is the planar approximation used by Search, in km.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	return math.Hypot(lat1-lat2, lng1-lng2) * KmPerDegree
}

// Counts returns the number of active and faulty devices.
func (r *Registry) Counts() (active, faulty int) {
	for _, rec := range r.records {
		switch rec.Status {
		case StatusActive:
			active++
		case StatusFaulty:
			faulty++
		}
	}
	return active, faulty
}
