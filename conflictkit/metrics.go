package conflictkit

// Outcome is the lifecycle event reported to the metrics boundary.
type Outcome string

const (
	OutcomeCreated      Outcome = "created"
	OutcomeAutoResolved Outcome = "auto_resolved"
	OutcomeResolved     Outcome = "resolved"
	OutcomeIgnored      Outcome = "ignored"
)

// MetricsRecorder receives lifecycle events for dashboards and counters. The
// implementation lives outside the engine.
type MetricsRecorder interface {
	Record(domain string, conflictType ConflictType, outcome Outcome)
}

// NoOpMetricsRecorder is the default implementation that does nothing
type NoOpMetricsRecorder struct{}

func (n *NoOpMetricsRecorder) Record(domain string, conflictType ConflictType, outcome Outcome) {}
