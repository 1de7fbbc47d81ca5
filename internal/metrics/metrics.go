package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// PostViewsTotal counts public single-post reads, one per view increment.
	PostViewsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blog_post_views_total",
			Help: "Total number of public post views",
		},
	)

	// PostMutationsTotal counts admin writes by action (create, update, delete).
	PostMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_post_mutations_total",
			Help: "Total number of post mutations by action",
		},
		[]string{"action"},
	)

	// CacheLookupsTotal counts published list cache lookups by result (hit, miss, error).
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_list_cache_lookups_total",
			Help: "Published list cache lookups by result",
		},
		[]string{"result"},
	)
)

var (
	numericPathSegment = regexp.MustCompile(`/[0-9]+(/|$)`)
	initOnce           sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, PostViewsTotal, PostMutationsTotal, CacheLookupsTotal)
	})
}

// NormalizePath reduces cardinality by replacing numeric path segments with {id}.
// E.g. /posts/admin/123 -> /posts/admin/{id}.
func NormalizePath(path string) string {
	return numericPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for an HTTP request. Call from middleware with method, path, statusCode, duration.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

func IncPostViews() {
	PostViewsTotal.Inc()
}

// IncPostMutation increments the mutation counter for action (create, update, delete).
func IncPostMutation(action string) {
	PostMutationsTotal.WithLabelValues(action).Inc()
}

// IncCacheLookup increments the cache lookup counter for result (hit, miss, error).
func IncCacheLookup(result string) {
	CacheLookupsTotal.WithLabelValues(result).Inc()
}
