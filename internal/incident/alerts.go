package incident

import (
	"context"
	"sync"

	"github.com/linnemanlabs/go-core/log"
)

// AlertRegistry is the durable, newest-first collection of alerts.
//
// Alert ids are not checked for uniqueness: two alerts may share an id and
// Acknowledge then affects the most recent one only.
type AlertRegistry struct {
	mu     sync.Mutex
	snap   snapshot[Alert]
	logger log.Logger
	hooks  *Hooks
}

// NewAlertRegistry creates an alert registry persisting through store.
func NewAlertRegistry(store SnapshotStore, logger log.Logger, hooks Hooks) *AlertRegistry {
	if logger == nil {
		logger = log.Nop()
	}
	h := &hooks
	return &AlertRegistry{
		snap:   snapshot[Alert]{store: store, coll: CollectionAlerts, logger: logger, hooks: h},
		logger: logger,
		hooks:  h,
	}
}

// List returns all alerts, most recent first.
func (r *AlertRegistry) List(ctx context.Context) []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.snap.load(ctx)
	if items == nil {
		return []Alert{}
	}
	return items
}

// Count returns the number of stored alerts.
func (r *AlertRegistry) Count(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snap.load(ctx))
}

// Create prepends a new alert and persists the collection.
func (r *AlertRegistry) Create(ctx context.Context, n NewAlert) (*Alert, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	al := Alert{
		ID:           n.ID,
		AnomalyID:    n.AnomalyID,
		Severity:     n.Severity,
		Message:      n.Message,
		SensorID:     n.SensorID,
		SensorType:   n.SensorType,
		Timestamp:    n.Timestamp,
		Acknowledged: n.Acknowledged,
	}

	r.mu.Lock()
	items := r.snap.load(ctx)
	items = append([]Alert{al}, items...)
	err := r.snap.save(ctx, items)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r.hooks.mutation(CollectionAlerts, "create")
	r.hooks.event(EventAlertCreated, al)
	return &al, nil
}

// Acknowledge marks the alert acknowledged. Acknowledging twice succeeds and
// still rewrites the snapshot.
func (r *AlertRegistry) Acknowledge(ctx context.Context, id string) error {
	r.mu.Lock()
	items := r.snap.load(ctx)
	idx := -1
	for i := range items {
		if items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return ErrNotFound
	}
	items[idx].Acknowledged = true
	err := r.snap.save(ctx, items)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.hooks.mutation(CollectionAlerts, "acknowledge")
	r.hooks.event(EventAlertAcknowledged, map[string]string{"id": id})
	return nil
}

// PurgeByAnomaly removes every alert linked to anomalyID and returns how many
// were removed. Removing none is a success, so the call is safe to retry.
func (r *AlertRegistry) PurgeByAnomaly(ctx context.Context, anomalyID string) (int, error) {
	r.mu.Lock()
	items := r.snap.load(ctx)
	kept := make([]Alert, 0, len(items))
	for _, al := range items {
		if al.AnomalyID != anomalyID {
			kept = append(kept, al)
		}
	}
	removed := len(items) - len(kept)
	err := r.snap.save(ctx, kept)
	r.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		r.hooks.mutation(CollectionAlerts, "purge")
		r.hooks.event(EventAlertsPurged, map[string]any{"anomalyId": anomalyID, "removed": removed})
	}
	return removed, nil
}

// Clear removes every alert.
func (r *AlertRegistry) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearLocked(ctx)
}

func (r *AlertRegistry) clearLocked(ctx context.Context) error {
	if err := r.snap.save(ctx, nil); err != nil {
		return err
	}
	r.hooks.mutation(CollectionAlerts, "clear")
	return nil
}
