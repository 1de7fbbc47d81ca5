package middleware

import (
	"net/http"
	"time"

	"github.com/crucial707/inkwell/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// Prometheus records request duration and count for each request. The
// path label is the matched chi route pattern, so slugs and ids do not
// create one series each.
func Prometheus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		statusW := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(statusW, r)
		if r.URL.Path == "/metrics" {
			return
		}
		duration := time.Since(start).Seconds()
		metrics.RecordRequest(r.Method, routeLabel(r), statusW.status, duration)
	})
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}
