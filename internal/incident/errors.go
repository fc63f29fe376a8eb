package incident

import "errors"

// Error kinds returned by the registries. Callers match with errors.Is.
var (
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation error")

	// ErrConflict is returned when creating an anomaly whose id already exists.
	ErrConflict = errors.New("conflict")

	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorage is returned when a snapshot cannot be written.
	ErrStorage = errors.New("storage error")

	// ErrCascadeIncomplete is returned by AnomalyRegistry.Delete when the
	// anomaly was removed but its alerts could not be purged. Retrying
	// AlertRegistry.PurgeByAnomaly repairs the state.
	ErrCascadeIncomplete = errors.New("cascade delete incomplete")
)
