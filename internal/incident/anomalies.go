package incident

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/trackwatch/internal/taxonomy"
)

// AnomalyRegistry is the durable, insertion-ordered collection of anomalies.
// Deleting an anomaly cascades to its alerts.
type AnomalyRegistry struct {
	mu     sync.Mutex
	snap   snapshot[Anomaly]
	alerts *AlertRegistry
	logger log.Logger
	hooks  *Hooks
	now    func() time.Time
}

// NewAnomalyRegistry creates an anomaly registry persisting through store and
// cascading deletes into alerts.
func NewAnomalyRegistry(store SnapshotStore, alerts *AlertRegistry, logger log.Logger, hooks Hooks) *AnomalyRegistry {
	if logger == nil {
		logger = log.Nop()
	}
	if alerts == nil {
		panic(xerrors.New("alert registry is required"))
	}
	h := &hooks
	return &AnomalyRegistry{
		snap:   snapshot[Anomaly]{store: store, coll: CollectionAnomalies, logger: logger, hooks: h},
		alerts: alerts,
		logger: logger,
		hooks:  h,
		now:    time.Now,
	}
}

// List returns all anomalies in insertion order.
func (r *AnomalyRegistry) List(ctx context.Context) []Anomaly {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.snap.load(ctx)
	if items == nil {
		return []Anomaly{}
	}
	return items
}

// Count returns the number of stored anomalies.
func (r *AnomalyRegistry) Count(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snap.load(ctx))
}

// Create stores a new anomaly. It fails with ErrConflict if the id exists.
func (r *AnomalyRegistry) Create(ctx context.Context, n NewAnomaly) (*Anomaly, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	def := taxonomy.Lookup(n.Type)
	ts := n.Timestamp
	if ts == "" {
		ts = r.now().UTC().Format(time.RFC3339Nano)
	}
	an := Anomaly{
		ID:          n.ID,
		Type:        n.Type,
		Position:    append([]float64(nil), n.Position...),
		Intensity:   *n.Intensity,
		InputValues: n.InputValues,
		Timestamp:   ts,
		DetectedBy:  def.DetectedBy,
		Description: def.Description,
		Resolved:    false,
	}

	r.mu.Lock()
	items := r.snap.load(ctx)
	for i := range items {
		if items[i].ID == n.ID {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: anomaly %q already exists", ErrConflict, n.ID)
		}
	}
	items = append(items, an)
	err := r.snap.save(ctx, items)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r.hooks.mutation(CollectionAnomalies, "create")
	r.hooks.event(EventAnomalyCreated, an)
	return &an, nil
}

// Resolve marks an anomaly resolved. Resolving twice succeeds.
func (r *AnomalyRegistry) Resolve(ctx context.Context, id string) error {
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
	items[idx].Resolved = true
	err := r.snap.save(ctx, items)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.hooks.mutation(CollectionAnomalies, "resolve")
	r.hooks.event(EventAnomalyResolved, map[string]string{"id": id})
	return nil
}

// Delete removes an anomaly and then purges its alerts.
//
// The two steps are not atomic. If the purge fails the anomaly stays deleted
// and the returned error matches ErrCascadeIncomplete; calling
// AlertRegistry.PurgeByAnomaly with the same id completes the cascade.
//
// The anomaly lock is released before the purge. An anomaly re-created with
// the same id in that window, together with any alert linked to it, loses
// those alerts to the purge; the re-created anomaly itself survives. Callers
// that reuse ids should wait for Delete to return before re-creating.
func (r *AnomalyRegistry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	items := r.snap.load(ctx)
	kept := make([]Anomaly, 0, len(items))
	for _, an := range items {
		if an.ID != id {
			kept = append(kept, an)
		}
	}
	if len(kept) == len(items) {
		r.mu.Unlock()
		return ErrNotFound
	}
	err := r.snap.save(ctx, kept)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.hooks.mutation(CollectionAnomalies, "delete")
	r.hooks.event(EventAnomalyDeleted, map[string]string{"id": id})

	removed, err := r.alerts.PurgeByAnomaly(ctx, id)
	if err != nil {
		r.logger.Error(ctx, err, "anomaly deleted but alert purge failed, alerts orphaned", "anomaly_id", id)
		r.hooks.cascadeFailure(id)
		return fmt.Errorf("%w: anomaly %q: %w", ErrCascadeIncomplete, id, err)
	}
	r.logger.Info(ctx, "anomaly deleted", "anomaly_id", id, "alerts_purged", removed)
	return nil
}

// ClearAll empties this registry and the alert registry.
func (r *AnomalyRegistry) ClearAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.snap.save(ctx, nil); err != nil {
		return err
	}
	r.hooks.mutation(CollectionAnomalies, "clear")

	r.alerts.mu.Lock()
	err := r.alerts.clearLocked(ctx)
	r.alerts.mu.Unlock()
	if err != nil {
		return err
	}

	r.hooks.event(EventAnomaliesCleared, nil)
	return nil
}
