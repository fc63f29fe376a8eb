package incident

import (
	"fmt"
	"math"
	"time"
)

// InputValues holds the optional raw sensor readings attached to an anomaly.
// Absent readings serialize as null.
type InputValues struct {
	Size           *float64 `json:"size"`
	Weight         *float64 `json:"weight"`
	Temperature    *float64 `json:"temperature"`
	Area           *float64 `json:"area"`
	Frequency      *float64 `json:"frequency"`
	Amplitude      *float64 `json:"amplitude"`
	AudioFrequency *float64 `json:"audioFrequency"`
}

// Anomaly is a detected track condition. Only Resolved changes after
// creation.
type Anomaly struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Position    []float64   `json:"position"` // [lat, lng]
	Intensity   float64     `json:"intensity"`
	InputValues InputValues `json:"inputValues"`
	Timestamp   string      `json:"timestamp"`
	DetectedBy  []string    `json:"detectedBy"`
	Description string      `json:"description"`
	Resolved    bool        `json:"resolved"`
}

// NewAnomaly is a create request for an Anomaly.
type NewAnomaly struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Position    []float64   `json:"position"`
	Intensity   *float64    `json:"intensity"`
	InputValues InputValues `json:"inputValues"`
	Timestamp   string      `json:"timestamp,omitempty"`
}

// Validate checks the candidate's shape. Unknown types are accepted.
func (n *NewAnomaly) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("%w: id is required", ErrValidation)
	}
	if len(n.Position) != 2 {
		return fmt.Errorf("%w: position must be [lat, lng], got %d values", ErrValidation, len(n.Position))
	}
	for _, v := range n.Position {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: position must be finite", ErrValidation)
		}
	}
	if n.Intensity == nil {
		return fmt.Errorf("%w: intensity is required", ErrValidation)
	}
	return nil
}

// Severity grades an Alert.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is one of the defined severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// Alert is a sensor-raised alert, optionally linked to an Anomaly.
type Alert struct {
	ID           string   `json:"id"`
	AnomalyID    string   `json:"anomalyId"`
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
	SensorID     string   `json:"sensorId"`
	SensorType   string   `json:"sensorType"`
	Timestamp    string   `json:"timestamp"`
	Acknowledged bool     `json:"acknowledged"`
}

// NewAlert is a create request for an Alert.
type NewAlert struct {
	ID           string   `json:"id"`
	AnomalyID    string   `json:"anomalyId"`
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
	SensorID     string   `json:"sensorId"`
	SensorType   string   `json:"sensorType"`
	Timestamp    string   `json:"timestamp"`
	Acknowledged bool     `json:"acknowledged"`
}

// Validate checks required fields and the severity enum.
func (n *NewAlert) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("%w: id is required", ErrValidation)
	}
	if !n.Severity.Valid() {
		return fmt.Errorf("%w: severity %q must be one of INFO, WARNING, CRITICAL", ErrValidation, n.Severity)
	}
	if n.Timestamp == "" {
		return fmt.Errorf("%w: timestamp is required", ErrValidation)
	}
	return nil
}

// ActionType is an operator dispatch instruction.
type ActionType string

const (
	ActionStop   ActionType = "STOP"
	ActionSlow   ActionType = "SLOW"
	ActionInform ActionType = "INFORM"
)

// Valid reports whether t is one of the defined action types.
func (t ActionType) Valid() bool {
	switch t {
	case ActionStop, ActionSlow, ActionInform:
		return true
	}
	return false
}

// Action is an operator response to an alert.
type Action struct {
	ID         int64      `json:"id"`
	AlertID    string     `json:"alert_id"`
	Type       ActionType `json:"action"`
	OperatorID string     `json:"operator_id"`
	Timestamp  time.Time  `json:"timestamp"`
}
