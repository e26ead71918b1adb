package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vidtube"

// Toggle results reported by the engagement engine.
const (
	ToggleCreated  = "created"
	ToggleRemoved  = "removed"
	ToggleConflict = "conflict"
)

// Recorder owns a private Prometheus registry holding the HTTP, engagement,
// feed and rate limiting collectors.
type Recorder struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	toggles         *prometheus.CounterVec
	feedDuration    *prometheus.HistogramVec
	feedErrors      *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

var defaultRecorder = New()

// requestMethods bounds the method label; anything else is counted as OTHER.
var requestMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// New constructs a Recorder with its collectors registered on a fresh
// registry alongside the Go runtime and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engagement_toggles_total",
			Help:      "Like and subscription toggles by edge and outcome.",
		}, []string{"edge", "result"}),
		feedDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_pipeline_duration_seconds",
			Help:      "Duration of feed and statistics pipelines.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"pipeline"}),
		feedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_pipeline_errors_total",
			Help:      "Feed and statistics pipelines that returned an error.",
		}, []string{"pipeline"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter by scope.",
		}, []string{"scope"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requests,
		r.requestDuration,
		r.toggles,
		r.feedDuration,
		r.feedErrors,
		r.rateLimited,
	)
	return r
}

// Default returns the process-wide Recorder.
func Default() *Recorder {
	return defaultRecorder
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRequest records an HTTP request under its route pattern. An empty
// route is recorded as UnmatchedRoute so unknown paths share one series.
func (r *Recorder) ObserveRequest(method, route string, status int, duration time.Duration) {
	m := strings.ToUpper(method)
	if !requestMethods[m] {
		m = "OTHER"
	}
	if route == "" {
		route = UnmatchedRoute
	}
	r.requests.WithLabelValues(m, route, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(m, route).Observe(duration.Seconds())
}

// ObserveToggle counts a toggle outcome for the like or subscription edge.
func (r *Recorder) ObserveToggle(edge, result string) {
	r.toggles.WithLabelValues(normalizeName(edge), normalizeName(result)).Inc()
}

// ObservePipeline records how long a named feed pipeline took.
func (r *Recorder) ObservePipeline(pipeline string, duration time.Duration, err error) {
	name := normalizeName(pipeline)
	r.feedDuration.WithLabelValues(name).Observe(duration.Seconds())
	if err != nil {
		r.feedErrors.WithLabelValues(name).Inc()
	}
}

// ObserveRateLimited counts a request rejected by the given limiter scope.
func (r *Recorder) ObserveRateLimited(scope string) {
	r.rateLimited.WithLabelValues(normalizeName(scope)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
