// Package consensus fuses per-modality sensor readings into an alert tier.
//
// Two strategies are provided and kept separate: ThresholdPair works on raw
// confidence scores, LevelOR works on readings already reduced to a binary
// level by their scorer. Both are pure.
package consensus

// Threshold-pair strategy thresholds. Comparisons are strict.
const (
	EmergencyThreshold = 0.8
	AdvisoryThreshold  = 0.5
)

// Modality reduction thresholds used by the scorers.
const (
	// AudioRatioThreshold is the high/low band energy ratio above which audio is HIGH.
	AudioRatioThreshold = 0.05

	// ThermalPersonThreshold is the person-detection confidence above which thermal is HIGH.
	ThermalPersonThreshold = 0.6
)

// Tier is the threshold-pair classification.
type Tier string

const (
	TierEmergency     Tier = "EMERGENCY"
	TierAdvisory      Tier = "ADVISORY"
	TierInformational Tier = "INFORMATIONAL"
)

// ThresholdPair classifies an acoustic and a thermal score in [0,1].
func ThresholdPair(acoustic, thermal float64) Tier {
	if acoustic > EmergencyThreshold && thermal > EmergencyThreshold {
		return TierEmergency
	}
	if acoustic > AdvisoryThreshold || thermal > AdvisoryThreshold {
		return TierAdvisory
	}
	return TierInformational
}

// Level is the binary outcome of a single modality.
type Level string

const (
	LevelHigh Level = "HIGH"
	LevelLow  Level = "LOW"
)

// Reading is one scorer's verdict on one piece of media.
type Reading struct {
	Level      Level   `json:"alert_level"`
	Details    string  `json:"analysis_details"`
	Confidence float64 `json:"confidence"`

	// Degraded is set when the scorer could not run its model and fell back
	// to a LOW reading.
	Degraded bool `json:"degraded"`
}

// High reports whether the reading is at the HIGH level.
func (r Reading) High() bool { return r.Level == LevelHigh }

// LevelTier is the Level-OR classification.
type LevelTier string

const (
	LevelTierEmergency     LevelTier = "Emergency"
	LevelTierAdvisory      LevelTier = "Advisory"
	LevelTierInformational LevelTier = "Informational"
)

// Assessment is the Level-OR result with the per-modality readings it was
// derived from.
type Assessment struct {
	Tier    LevelTier `json:"tier"`
	Audio   Reading   `json:"audio"`
	Thermal Reading   `json:"thermal"`
}

// LevelOR classifies an audio and a thermal reading.
func LevelOR(audio, thermal Reading) Assessment {
	tier := LevelTierInformational
	switch {
	case audio.High() && thermal.High():
		tier = LevelTierEmergency
	case audio.High() || thermal.High():
		tier = LevelTierAdvisory
	}
	return Assessment{Tier: tier, Audio: audio, Thermal: thermal}
}
