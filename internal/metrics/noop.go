package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRecipeCreated is a no-op.
func (n *NoopRecorder) IncRecipeCreated() {}

// IncRecipeUpdated is a no-op.
func (n *NoopRecorder) IncRecipeUpdated() {}

// IncRecipeDeleted is a no-op.
func (n *NoopRecorder) IncRecipeDeleted() {}

// IncRecipeWriteFailed is a no-op.
func (n *NoopRecorder) IncRecipeWriteFailed(op string) {}

// IncReadFailure is a no-op.
func (n *NoopRecorder) IncReadFailure(op string) {}

// IncImageUpload is a no-op.
func (n *NoopRecorder) IncImageUpload(status string) {}

// ObserveImageUploadDuration is a no-op.
func (n *NoopRecorder) ObserveImageUploadDuration(duration time.Duration) {}

// IncAuthEvent is a no-op.
func (n *NoopRecorder) IncAuthEvent(event string) {}

// IncAuthFailure is a no-op.
func (n *NoopRecorder) IncAuthFailure(op string) {}

// ObserveHTTPRequest is a no-op.
func (n *NoopRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {}
