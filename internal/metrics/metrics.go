// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Read operations that degrade to empty results on failure.
const (
	ReadList        = "list"
	ReadSearch      = "search"
	ReadGet         = "get"
	ReadCurrentUser = "current_user"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// Recipe write metrics
	IncRecipeCreated()
	IncRecipeUpdated()
	IncRecipeDeleted()
	IncRecipeWriteFailed(op string) // op: "create", "update", "delete"

	// Fail-soft reads that returned an empty value because of an error
	IncReadFailure(op string)

	// Media upload metrics
	IncImageUpload(status string) // status: "success" or "failed"
	ObserveImageUploadDuration(duration time.Duration)

	// Auth metrics
	IncAuthEvent(event string)
	IncAuthFailure(op string)

	// HTTP metrics
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
