package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncSubscriptionCreated is a no-op.
func (n *NoopRecorder) IncSubscriptionCreated() {}

// IncSubscriptionRejected is a no-op.
func (n *NoopRecorder) IncSubscriptionRejected() {}

// IncSubscriptionFailed is a no-op.
func (n *NoopRecorder) IncSubscriptionFailed(kind string) {}

// ObserveInsertDuration is a no-op.
func (n *NoopRecorder) ObserveInsertDuration(duration time.Duration) {}

// ObserveHTTPRequest is a no-op.
func (n *NoopRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {}
