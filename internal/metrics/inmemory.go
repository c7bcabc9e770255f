package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	RecipesCreated      uint64
	RecipesUpdated      uint64
	RecipesDeleted      uint64
	RecipeWriteFailures map[string]uint64
	ReadFailures        map[string]uint64
	ImageUploads        map[string]uint64
	ImageUploadCount    uint64
	ImageUploadTotalNs  int64
	AuthEvents          map[string]uint64
	AuthFailures        map[string]uint64
	HTTPRequests        uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	recipesCreated     uint64
	recipesUpdated     uint64
	recipesDeleted     uint64
	imageUploadCount   uint64
	imageUploadTotalNs int64
	httpRequests       uint64

	mu           sync.Mutex
	writeFailed  map[string]uint64
	readFailures map[string]uint64
	imageUploads map[string]uint64
	authEvents   map[string]uint64
	authFailures map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		writeFailed:  map[string]uint64{},
		readFailures: map[string]uint64{},
		imageUploads: map[string]uint64{},
		authEvents:   map[string]uint64{},
		authFailures: map[string]uint64{},
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		RecipesCreated:      atomic.LoadUint64(&m.recipesCreated),
		RecipesUpdated:      atomic.LoadUint64(&m.recipesUpdated),
		RecipesDeleted:      atomic.LoadUint64(&m.recipesDeleted),
		RecipeWriteFailures: copyCounts(m.writeFailed),
		ReadFailures:        copyCounts(m.readFailures),
		ImageUploads:        copyCounts(m.imageUploads),
		ImageUploadCount:    atomic.LoadUint64(&m.imageUploadCount),
		ImageUploadTotalNs:  atomic.LoadInt64(&m.imageUploadTotalNs),
		AuthEvents:          copyCounts(m.authEvents),
		AuthFailures:        copyCounts(m.authFailures),
		HTTPRequests:        atomic.LoadUint64(&m.httpRequests),
	}
}

// IncRecipeCreated increments recipe created counter.
func (m *InMemoryRecorder) IncRecipeCreated() {
	atomic.AddUint64(&m.recipesCreated, 1)
}

// IncRecipeUpdated increments recipe updated counter.
func (m *InMemoryRecorder) IncRecipeUpdated() {
	atomic.AddUint64(&m.recipesUpdated, 1)
}

// IncRecipeDeleted increments recipe deleted counter.
func (m *InMemoryRecorder) IncRecipeDeleted() {
	atomic.AddUint64(&m.recipesDeleted, 1)
}

// IncRecipeWriteFailed counts a failed write by operation.
func (m *InMemoryRecorder) IncRecipeWriteFailed(op string) {
	m.inc(m.writeFailed, op)
}

// IncReadFailure counts a swallowed read failure by operation.
func (m *InMemoryRecorder) IncReadFailure(op string) {
	m.inc(m.readFailures, op)
}

// IncImageUpload counts uploads by status.
func (m *InMemoryRecorder) IncImageUpload(status string) {
	m.inc(m.imageUploads, status)
}

// ObserveImageUploadDuration records upload duration.
func (m *InMemoryRecorder) ObserveImageUploadDuration(duration time.Duration) {
	atomic.AddUint64(&m.imageUploadCount, 1)
	atomic.AddInt64(&m.imageUploadTotalNs, duration.Nanoseconds())
}

// IncAuthEvent counts auth state changes by event.
func (m *InMemoryRecorder) IncAuthEvent(event string) {
	m.inc(m.authEvents, event)
}

// IncAuthFailure counts failed auth operations.
func (m *InMemoryRecorder) IncAuthFailure(op string) {
	m.inc(m.authFailures, op)
}

// ObserveHTTPRequest counts served requests.
func (m *InMemoryRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	atomic.AddUint64(&m.httpRequests, 1)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, key string) {
	m.mu.Lock()
	counts[key]++
	m.mu.Unlock()
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
