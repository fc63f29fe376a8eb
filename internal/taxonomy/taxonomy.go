// Package taxonomy maps anomaly type codes to their description and the
// hardware types able to detect them.
package taxonomy

// Hardware type codes.
const (
	OFCNode    = "OFC_NODE"
	ThermalCam = "THERMAL_CAM"
)

// Anomaly type codes with a registered definition.
const (
	Obstruction = "OBSTRUCTION"
	Tampering   = "TAMPERING"
	Thermal     = "THERMAL"
	Vibration   = "VIBRATION"
)

// UnknownDescription is used for any code without a registered definition.
const UnknownDescription = "Unknown anomaly type"

// Definition describes one anomaly type.
type Definition struct {
	Description string
	DetectedBy  []string
}

var defs = map[string]Definition{
	Obstruction: {Description: "Rock, debris, or object blocking the track", DetectedBy: []string{OFCNode}},
	Tampering:   {Description: "Fishplate removal or rail displacement", DetectedBy: []string{OFCNode}},
	Thermal:     {Description: "Fire, heat source, or human presence", DetectedBy: []string{ThermalCam}},
	Vibration:   {Description: "Unusual vibration or audio anomaly detected", DetectedBy: []string{OFCNode}},
}

var fallback = Definition{Description: UnknownDescription, DetectedBy: []string{OFCNode}}

// Lookup returns the definition for code. It never fails: unregistered
// codes (including the empty string) resolve to the unknown definition.
// The returned DetectedBy slice is owned by the caller.
func Lookup(code string) Definition {
	d, ok := defs[code]
	if !ok {
		d = fallback
	}
	return Definition{
		Description: d.Description,
		DetectedBy:  append([]string(nil), d.DetectedBy...),
	}
}

// Known reports whether code has a registered definition.
func Known(code string) bool {
	_, ok := defs[code]
	return ok
}

// Codes lists the registered type codes in a fixed order.
func Codes() []string {
	return []string{Obstruction, Tampering, Thermal, Vibration}
}
