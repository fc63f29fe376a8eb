// Package scoring runs the modality analyzers over uploaded media, fuses
// their readings through the consensus engine, and records actionable
// results as alerts.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/trackwatch/internal/consensus"
	"github.com/linnemanlabs/trackwatch/internal/incident"
)

// SensorType is stamped on alerts raised by a full check.
const SensorType = "CONSENSUS"

// Modality names used in logs and metrics.
const (
	ModalityAudio   = "audio"
	ModalityThermal = "thermal"
)

// Strategy names used in metrics.
const (
	StrategyLevelOR       = "level_or"
	StrategyThresholdPair = "threshold_pair"
)

// Analyzer turns raw media into a modality reading. Unparseable media must
// produce an error matching incident.ErrValidation.
type Analyzer interface {
	Analyze(ctx context.Context, media []byte) (consensus.Reading, error)
}

// AlertSink receives alerts raised by full checks.
type AlertSink interface {
	Create(ctx context.Context, n incident.NewAlert) (*incident.Alert, error)
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Incident is the outcome of one full sensor check.
type Incident struct {
	ID              string              `json:"id"`
	Tier            consensus.LevelTier `json:"tier"`
	Coordinates     Coordinates         `json:"coordinates"`
	AudioAnalysis   string              `json:"audio_analysis"`
	ThermalAnalysis string              `json:"thermal_analysis"`
	Audio           consensus.Reading   `json:"audio"`
	Thermal         consensus.Reading   `json:"thermal"`
	Timestamp       time.Time           `json:"timestamp"`
	Recorded        bool                `json:"recorded"`
}

// Service orchestrates the analyzers.
type Service struct {
	audio   Analyzer
	thermal Analyzer
	alerts  AlertSink
	logger  log.Logger
	hooks   Hooks
	timeout time.Duration
	now     func() time.Time
}

// NewService creates a scoring service. timeout bounds every analyzer call;
// zero disables the bound.
func NewService(audio, thermal Analyzer, alerts AlertSink, logger log.Logger, hooks Hooks, timeout time.Duration) *Service {
	if audio == nil || thermal == nil {
		panic(xerrors.New("audio and thermal analyzers are required"))
	}
	if alerts == nil {
		panic(xerrors.New("alert sink is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		audio:   audio,
		thermal: thermal,
		alerts:  alerts,
		logger:  logger,
		hooks:   hooks,
		timeout: timeout,
		now:     time.Now,
	}
}

// AnalyzeAudio runs the acoustic analyzer alone.
func (s *Service) AnalyzeAudio(ctx context.Context, media []byte) (consensus.Reading, error) {
	return s.run(ctx, ModalityAudio, s.audio, media)
}

// AnalyzeThermal runs the thermal analyzer alone.
func (s *Service) AnalyzeThermal(ctx context.Context, media []byte) (consensus.Reading, error) {
	return s.run(ctx, ModalityThermal, s.thermal, media)
}

// Threshold applies the threshold-pair strategy to precomputed scores.
func (s *Service) Threshold(acoustic, thermal float64) (consensus.Tier, error) {
	scores := []struct {
		name string
		v    float64
	}{{"acoustic", acoustic}, {"thermal", thermal}}
	for _, sc := range scores {
		if math.IsNaN(sc.v) || sc.v < 0 || sc.v > 1 {
			return "", fmt.Errorf("%w: %s score must be within [0, 1]", incident.ErrValidation, sc.name)
		}
	}
	tier := consensus.ThresholdPair(acoustic, thermal)
	s.hooks.tier(StrategyThresholdPair, string(tier))
	return tier, nil
}

// FullCheck analyzes both media concurrently, fuses the readings with the
// level-OR strategy, and records an alert unless the result is
// informational.
func (s *Service) FullCheck(ctx context.Context, at Coordinates, audio, image []byte) (*Incident, error) {
	var audioR, thermalR consensus.Reading

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.run(gctx, ModalityAudio, s.audio, audio)
		audioR = r
		return err
	})
	g.Go(func() error {
		r, err := s.run(gctx, ModalityThermal, s.thermal, image)
		thermalR = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a := consensus.LevelOR(audioR, thermalR)
	s.hooks.tier(StrategyLevelOR, string(a.Tier))

	inc := &Incident{
		ID:              "AL-" + ulid.Make().String(),
		Tier:            a.Tier,
		Coordinates:     at,
		AudioAnalysis:   a.Audio.Details,
		ThermalAnalysis: a.Thermal.Details,
		Audio:           a.Audio,
		Thermal:         a.Thermal,
		Timestamp:       s.now().UTC(),
	}

	L := s.logger.With("incident_id", inc.ID, "tier", string(inc.Tier))
	if a.Tier == consensus.LevelTierInformational {
		L.Info(ctx, "full check informational, not recorded")
		return inc, nil
	}

	sev := incident.SeverityWarning
	if a.Tier == consensus.LevelTierEmergency {
		sev = incident.SeverityCritical
	}
	if _, err := s.alerts.Create(ctx, incident.NewAlert{
		ID:         inc.ID,
		Severity:   sev,
		Message:    alertMessage(inc),
		SensorID:   SensorType,
		SensorType: SensorType,
		Timestamp:  inc.Timestamp.Format(time.RFC3339Nano),
	}); err != nil {
		L.Error(ctx, err, "failed to record full check alert")
		return nil, err
	}
	inc.Recorded = true
	L.Info(ctx, "full check alert recorded", "lat", at.Lat, "lng", at.Lng)
	return inc, nil
}

func alertMessage(inc *Incident) string {
	var parts []string
	if inc.Audio.High() {
		parts = append(parts, inc.AudioAnalysis)
	}
	if inc.Thermal.High() {
		parts = append(parts, inc.ThermalAnalysis)
	}
	return fmt.Sprintf("%s at (%.4f, %.4f): %s",
		inc.Tier, inc.Coordinates.Lat, inc.Coordinates.Lng, strings.Join(parts, "; "))
}

func (s *Service) run(ctx context.Context, modality string, a Analyzer, media []byte) (consensus.Reading, error) {
	if len(media) == 0 {
		return consensus.Reading{}, fmt.Errorf("%w: %s media is empty", incident.ErrValidation, modality)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	r, err := a.Analyze(ctx, media)
	dur := time.Since(start)

	outcome := outcomeOf(r, err)
	s.hooks.analyze(modality, outcome, dur)
	if err != nil {
		if !errors.Is(err, incident.ErrValidation) {
			s.logger.Error(ctx, err, "analyzer failed", "modality", modality, "duration", dur.Seconds())
		}
		return consensus.Reading{}, fmt.Errorf("%s analysis: %w", modality, err)
	}
	if r.Degraded {
		s.logger.Warn(ctx, "analyzer degraded", "modality", modality)
	}
	return r, nil
}

func outcomeOf(r consensus.Reading, err error) string {
	switch {
	case errors.Is(err, incident.ErrValidation):
		return "invalid"
	case err != nil:
		return "error"
	case r.Degraded:
		return "degraded"
	default:
		return strings.ToLower(string(r.Level))
	}
}
