// Package metrics abstracts operation instrumentation so the services can be
// wired with a real Prometheus registry in the daemon and a no-op collector
// in tests.
package metrics

// Collector records service-level measurements.
type Collector interface {
	// RecordTimerOperation observes one control action (start, pause, resume,
	// reset, soft_reset, finalize, session_read) with its outcome label
	// (ok, not_found, validation, error) and duration in seconds.
	RecordTimerOperation(op, outcome string, seconds float64)
	// RecordEventPublished counts change events pushed to the stream by type.
	RecordEventPublished(eventType string)
	// RecordReconciliation counts sync-client reconciliations by result
	// (applied, stale, coalesced, cleared).
	RecordReconciliation(result string)
	// RecordCacheAccess counts read-through cache lookups by cache name.
	RecordCacheAccess(cache string, hit bool)
}
