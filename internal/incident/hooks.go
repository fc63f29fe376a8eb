package incident

// Hooks are optional observers for registry activity. Any nil field is
// skipped.
type Hooks struct {
	// OnStorageFallback fires when a collection loads as empty because its
	// stored document was unreadable.
	OnStorageFallback func(c Collection, err error)

	// OnStorageWrite fires after every snapshot write; err is nil on success.
	OnStorageWrite func(c Collection, err error)

	// OnMutation fires after a successful registry mutation.
	OnMutation func(c Collection, op string)

	// OnCascadeFailure fires when an anomaly was deleted but its alerts
	// could not be purged.
	OnCascadeFailure func(anomalyID string)

	// OnAction fires after an action is recorded.
	OnAction func(t ActionType)

	// OnEvent receives every domain event for live delivery.
	OnEvent func(event string, payload any)
}

// Event names passed to OnEvent.
const (
	EventAnomalyCreated    = "anomaly.created"
	EventAnomalyResolved   = "anomaly.resolved"
	EventAnomalyDeleted    = "anomaly.deleted"
	EventAnomaliesCleared  = "anomalies.cleared"
	EventAlertCreated      = "alert.created"
	EventAlertAcknowledged = "alert.acknowledged"
	EventAlertsPurged      = "alerts.purged"
	EventActionRecorded    = "action.recorded"
)

func (h *Hooks) storageFallback(c Collection, err error) {
	if h != nil && h.OnStorageFallback != nil {
		h.OnStorageFallback(c, err)
	}
}

func (h *Hooks) storageWrite(c Collection, err error) {
	if h != nil && h.OnStorageWrite != nil {
		h.OnStorageWrite(c, err)
	}
}

func (h *Hooks) mutation(c Collection, op string) {
	if h != nil && h.OnMutation != nil {
		h.OnMutation(c, op)
	}
}

func (h *Hooks) cascadeFailure(id string) {
	if h != nil && h.OnCascadeFailure != nil {
		h.OnCascadeFailure(id)
	}
}

func (h *Hooks) action(t ActionType) {
	if h != nil && h.OnAction != nil {
		h.OnAction(t)
	}
}

func (h *Hooks) event(name string, payload any) {
	if h != nil && h.OnEvent != nil {
		h.OnEvent(name, payload)
	}
}
