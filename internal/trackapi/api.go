// Package trackapi serves the trackside monitoring HTTP API.
package trackapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/trackwatch/internal/consensus"
	"github.com/linnemanlabs/trackwatch/internal/hardware"
	"github.com/linnemanlabs/trackwatch/internal/incident"
	"github.com/linnemanlabs/trackwatch/internal/scoring"
)

// jsonBodyLimit caps JSON request bodies. Media uploads use MaxUploadBytes.
const jsonBodyLimit = 1024 * 64

// defaultMaxUpload applies when Options.MaxUploadBytes is zero.
const defaultMaxUpload = 16 << 20

// AnomalyService is the anomaly registry as seen by the handlers.
type AnomalyService interface {
	List(ctx context.Context) []incident.Anomaly
	Create(ctx context.Context, n incident.NewAnomaly) (*incident.Anomaly, error)
	Delete(ctx context.Context, id string) error
	Resolve(ctx context.Context, id string) error
	ClearAll(ctx context.Context) error
}

// AlertService is the alert registry as seen by the handlers.
type AlertService interface {
	List(ctx context.Context) []incident.Alert
	Count(ctx context.Context) int
	Create(ctx context.Context, n incident.NewAlert) (*incident.Alert, error)
	Acknowledge(ctx context.Context, id string) error
	PurgeByAnomaly(ctx context.Context, anomalyID string) (int, error)
}

// ActionService is the action log as seen by the handlers.
type ActionService interface {
	Record(ctx context.Context, alertID string, t incident.ActionType, operatorID string) (*incident.Action, error)
	List() []incident.Action
}

// ScoringService runs analyzers and consensus.
type ScoringService interface {
	AnalyzeAudio(ctx context.Context, media []byte) (consensus.Reading, error)
	AnalyzeThermal(ctx context.Context, media []byte) (consensus.Reading, error)
	FullCheck(ctx context.Context, at scoring.Coordinates, audio, image []byte) (*scoring.Incident, error)
	Threshold(acoustic, thermal float64) (consensus.Tier, error)
}

// HardwareIndex answers hardware search and stats queries.
type HardwareIndex interface {
	Search(lat, lng, radiusKm float64) []hardware.Match
	Counts() (active, faulty int)
}

// Deps are the services the API serves. All are required.
type Deps struct {
	Anomalies AnomalyService
	Alerts    AlertService
	Actions   ActionService
	Scoring   ScoringService
	Hardware  HardwareIndex
}

// Options tune the API.
type Options struct {
	// MaxUploadBytes caps multipart uploads on analysis routes.
	MaxUploadBytes int64

	// Auth wraps every mutating route when set.
	Auth func(http.Handler) http.Handler
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger    log.Logger
	anomalies AnomalyService
	alerts    AlertService
	actions   ActionService
	scoring   ScoringService
	hardware  HardwareIndex
	opts      Options
}

// New creates a new API handler.
func New(logger log.Logger, d Deps, opts Options) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if d.Anomalies == nil || d.Alerts == nil || d.Actions == nil {
		panic(xerrors.New("anomaly, alert and action services are required"))
	}
	if d.Scoring == nil {
		panic(xerrors.New("scoring service is required"))
	}
	if d.Hardware == nil {
		panic(xerrors.New("hardware index is required"))
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if opts.Auth == nil {
		opts.Auth = func(next http.Handler) http.Handler { return next }
	}
	return &API{
		logger:    logger,
		anomalies: d.Anomalies,
		alerts:    d.Alerts,
		actions:   d.Actions,
		scoring:   d.Scoring,
		hardware:  d.Hardware,
		opts:      opts,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		// JSON routes
		r.Group(func(r chi.Router) {
			r.Use(httpmw.MaxBody(jsonBodyLimit))

			r.Get("/anomalies", a.handleListAnomalies)
			r.With(a.opts.Auth).Post("/anomalies", a.handleCreateAnomaly)
			r.With(a.opts.Auth).Delete("/anomalies", a.handleClearAnomalies)
			r.With(a.opts.Auth).Delete("/anomalies/{id}", a.handleDeleteAnomaly)
			r.With(a.opts.Auth).Patch("/anomalies/{id}/resolve", a.handleResolveAnomaly)
			r.With(a.opts.Auth).Delete("/anomalies/{id}/alerts", a.handlePurgeAlerts)

			r.Get("/anomalies/alerts", a.handleListAlerts)
			r.With(a.opts.Auth).Post("/anomalies/alerts", a.handleCreateAlert)
			r.With(a.opts.Auth).Patch("/anomalies/alerts/{id}/acknowledge", a.handleAcknowledgeAlert)
			r.Get("/alerts", a.handleListAlerts)

			r.With(a.opts.Auth).Post("/actions/notify", a.handleNotify)
			r.Get("/actions/history", a.handleActionHistory)

			r.Post("/consensus/threshold", a.handleThreshold)

			r.Get("/stats", a.handleStats)
			r.Get("/hardware/search", a.handleHardwareSearch)
		})

		// Media uploads carry their own limit.
		r.Post("/analyze/audio", a.handleAnalyzeAudio)
		r.Post("/analyze/thermal", a.handleAnalyzeThermal)
		r.With(a.opts.Auth).Post("/ingest/full-check", a.handleFullCheck)
	})
}
