package metrics

// NopCollector implements a no-op metrics collector.
//
// All measurements are discarded. Useful for tests or when external metrics
// collection is not configured.
type NopCollector struct{}

// Compile-time assertion that NopCollector implements Collector.
var _ Collector = (*NopCollector)(nil)

// NewNop creates a new no-op metrics collector.
func NewNop() *NopCollector {
	return &NopCollector{}
}

// RecordTimerOperation discards the observation.
func (n *NopCollector) RecordTimerOperation(_, _ string, _ float64) {
	// No-op
}

// RecordEventPublished discards the observation.
func (n *NopCollector) RecordEventPublished(_ string) {
	// No-op
}

// RecordReconciliation discards the observation.
func (n *NopCollector) RecordReconciliation(_ string) {
	// No-op
}

// RecordCacheAccess discards the observation.
func (n *NopCollector) RecordCacheAccess(_ string, _ bool) {
	// No-op
}
