package scoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Hooks observe analyzer runs and consensus decisions. Nil fields are
// skipped.
type Hooks struct {
	OnAnalyze func(modality, outcome string, d time.Duration)
	OnTier    func(strategy, tier string)
}

func (h Hooks) analyze(modality, outcome string, d time.Duration) {
	if h.OnAnalyze != nil {
		h.OnAnalyze(modality, outcome, d)
	}
}

func (h Hooks) tier(strategy, tier string) {
	if h.OnTier != nil {
		h.OnTier(strategy, tier)
	}
}

// Metrics holds Prometheus metrics for the scoring subsystem.
type Metrics struct {
	AnalyzeDuration *prometheus.HistogramVec
	AnalyzeTotal    *prometheus.CounterVec
	TiersTotal      *prometheus.CounterVec
}

// NewMetrics registers and returns scoring metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AnalyzeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trackwatch_analyze_duration_seconds",
			Help:    "Duration of analyzer runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}, []string{"modality"}),
		AnalyzeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackwatch_analyze_total",
			Help: "Analyzer runs by modality and outcome (high, low, degraded, invalid, error).",
		}, []string{"modality", "outcome"}),
		TiersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackwatch_consensus_tiers_total",
			Help: "Consensus decisions by strategy and tier.",
		}, []string{"strategy", "tier"}),
	}

	reg.MustRegister(m.AnalyzeDuration, m.AnalyzeTotal, m.TiersTotal)
	return m
}

// Hooks returns Hooks that record into m.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnAnalyze: func(modality, outcome string, d time.Duration) {
			m.AnalyzeDuration.WithLabelValues(modality).Observe(d.Seconds())
			m.AnalyzeTotal.WithLabelValues(modality, outcome).Inc()
		},
		OnTier: func(strategy, tier string) {
			m.TiersTotal.WithLabelValues(strategy, tier).Inc()
		},
	}
}
