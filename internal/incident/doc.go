// Package incident is the decision-and-state boundary of trackwatch. It owns
// the Anomaly and Alert registries (durable, full-snapshot persistence behind
// SnapshotStore), the volatile operator Action log, the error kinds shared by
// the HTTP layer, and the metrics for all three.
package incident
