package incident

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the incident registries.
type Metrics struct {
	StorageFallbacks *prometheus.CounterVec
	StorageWrites    *prometheus.CounterVec
	Mutations        *prometheus.CounterVec
	CascadeFailures  prometheus.Counter
	ActionsTotal     *prometheus.CounterVec
}

// NewMetrics registers and returns incident metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StorageFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackwatch_storage_fallbacks_total",
			Help: "Collections loaded as empty because the stored document was unreadable.",
		}, []string{"collection"}),
		StorageWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackwatch_storage_writes_total",
			Help: "Snapshot writes by collection and result.",
		}, []string{"collection", "result"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackwatch_registry_mutations_total",
			Help: "Successful registry mutations by collection and operation.",
		}, []string{"collection", "op"}),
		CascadeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackwatch_cascade_failures_total",
			Help: "Anomaly deletes whose alert purge failed.",
		}),
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackwatch_actions_total",
			Help: "Operator actions recorded by type.",
		}, []string{"action"}),
	}

	reg.MustRegister(
		m.StorageFallbacks,
		m.StorageWrites,
		m.Mutations,
		m.CascadeFailures,
		m.ActionsTotal,
	)

	return m
}

// Hooks returns registry Hooks that increment the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnStorageFallback: func(c Collection, _ error) {
			m.StorageFallbacks.WithLabelValues(string(c)).Inc()
		},
		OnStorageWrite: func(c Collection, err error) {
			result := "success"
			if err != nil {
				result = "error"
			}
			m.StorageWrites.WithLabelValues(string(c), result).Inc()
		},
		OnMutation: func(c Collection, op string) {
			m.Mutations.WithLabelValues(string(c), op).Inc()
		},
		OnCascadeFailure: func(string) {
			m.CascadeFailures.Inc()
		},
		OnAction: func(t ActionType) {
			m.ActionsTotal.WithLabelValues(string(t)).Inc()
		},
	}
}

// Merge combines hooks so each event reaches every non-nil observer.
func Merge(hs ...Hooks) Hooks {
	return Hooks{
		OnStorageFallback: func(c Collection, err error) {
			for i := range hs {
				hs[i].storageFallback(c, err)
			}
		},
		OnStorageWrite: func(c Collection, err error) {
			for i := range hs {
				hs[i].storageWrite(c, err)
			}
		},
		OnMutation: func(c Collection, op string) {
			for i := range hs {
				hs[i].mutation(c, op)
			}
		},
		OnCascadeFailure: func(id string) {
			for i := range hs {
				hs[i].cascadeFailure(id)
			}
		},
		OnAction: func(t ActionType) {
			for i := range hs {
				hs[i].action(t)
			}
		},
		OnEvent: func(name string, payload any) {
			for i := range hs {
				hs[i].event(name, payload)
			}
		},
	}
}
