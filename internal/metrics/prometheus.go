package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recetas"

// PrometheusRecorder exposes Recorder events as Prometheus collectors on
// its own registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	recipeWrites      *prometheus.CounterVec
	recipeWriteErrors *prometheus.CounterVec
	readFailures      *prometheus.CounterVec
	imageUploads      *prometheus.CounterVec
	uploadDuration    prometheus.Histogram
	authEvents        *prometheus.CounterVec
	authFailures      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
}

// NewPrometheus creates a recorder with Go runtime and process collectors
// registered next to the application metrics.
func NewPrometheus() *PrometheusRecorder {
	p := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		recipeWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recipes",
			Name:      "writes_total",
			Help:      "Successful recipe writes by operation.",
		}, []string{"op"}),
		recipeWriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recipes",
			Name:      "write_failures_total",
			Help:      "Failed recipe writes by operation.",
		}, []string{"op"}),
		readFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_failures_total",
			Help:      "Reads that returned an empty result because the backend failed.",
		}, []string{"op"}),
		imageUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "media",
			Name:      "uploads_total",
			Help:      "Image uploads by status.",
		}, []string{"status"}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "media",
			Name:      "upload_duration_seconds",
			Help:      "Duration of image uploads in seconds.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "events_total",
			Help:      "Auth state changes by event.",
		}, []string{"event"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "failures_total",
			Help:      "Failed auth operations.",
		}, []string{"op"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.recipeWrites,
		p.recipeWriteErrors,
		p.readFailures,
		p.imageUploads,
		p.uploadDuration,
		p.authEvents,
		p.authFailures,
		p.requestDuration,
		p.requestTotal,
	)
	return p
}

// Registry returns the registry the collectors live on.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the metrics page.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// IncRecipeCreated counts a created recipe.
func (p *PrometheusRecorder) IncRecipeCreated() {
	p.recipeWrites.WithLabelValues("create").Inc()
}

// IncRecipeUpdated counts an updated recipe.
func (p *PrometheusRecorder) IncRecipeUpdated() {
	p.recipeWrites.WithLabelValues("update").Inc()
}

// IncRecipeDeleted counts a deleted recipe.
func (p *PrometheusRecorder) IncRecipeDeleted() {
	p.recipeWrites.WithLabelValues("delete").Inc()
}

// IncRecipeWriteFailed counts a failed write.
func (p *PrometheusRecorder) IncRecipeWriteFailed(op string) {
	p.recipeWriteErrors.WithLabelValues(op).Inc()
}

// IncReadFailure counts a swallowed read failure.
func (p *PrometheusRecorder) IncReadFailure(op string) {
	p.readFailures.WithLabelValues(op).Inc()
}

// IncImageUpload counts an upload attempt by status.
func (p *PrometheusRecorder) IncImageUpload(status string) {
	p.imageUploads.WithLabelValues(status).Inc()
}

// ObserveImageUploadDuration records upload latency.
func (p *PrometheusRecorder) ObserveImageUploadDuration(duration time.Duration) {
	p.uploadDuration.Observe(duration.Seconds())
}

// IncAuthEvent counts an auth state change.
func (p *PrometheusRecorder) IncAuthEvent(event string) {
	p.authEvents.WithLabelValues(event).Inc()
}

// IncAuthFailure counts a failed auth operation.
func (p *PrometheusRecorder) IncAuthFailure(op string) {
	p.authFailures.WithLabelValues(op).Inc()
}

// ObserveHTTPRequest records one served request. route is the matched
// route pattern, not the raw path.
func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	p.requestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	p.requestTotal.WithLabelValues(method, route, code).Inc()
}
