package incident

import "context"

// Collection names a persisted record set.
type Collection string

const (
	CollectionAnomalies Collection = "anomalies"
	CollectionAlerts    Collection = "alerts"
)

// SnapshotStore persists each collection as a single document that is
// rewritten wholesale on every mutation.
type SnapshotStore interface {
	// Load returns the last saved document, or nil with no error if the
	// collection was never saved.
	Load(ctx context.Context, c Collection) ([]byte, error)

	// Save replaces the collection's document.
	Save(ctx context.Context, c Collection, doc []byte) error
}
