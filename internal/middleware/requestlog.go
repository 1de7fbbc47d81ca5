package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// statusWriter records the status code and body size of a response.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

const requestInfoKey key = "request-info"

// requestInfo is filled in by middleware further down the chain, which
// only sees derived requests.
type requestInfo struct {
	userID int
}

// NoteUser records the authenticated account on the request log line. It
// is a no-op outside RequestLog.
func NoteUser(ctx context.Context, userID int) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.userID = userID
	}
}

// quietPaths are logged at debug level.
var quietPaths = map[string]bool{"/health": true, "/ready": true, "/metrics": true}

// RequestLog writes one line per request with its chi route pattern and
// the authenticated user, if any. 5xx responses log at error level and
// 4xx at warn. Run it after chimw.RequestID.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		info := &requestInfo{}
		r = r.WithContext(context.WithValue(r.Context(), requestInfoKey, info))
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		level := slog.LevelInfo
		switch {
		case sw.status >= http.StatusInternalServerError:
			level = slog.LevelError
		case sw.status >= http.StatusBadRequest:
			level = slog.LevelWarn
		case quietPaths[r.URL.Path]:
			level = slog.LevelDebug
		}
		attrs := []slog.Attr{
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("route", routeLabel(r)),
			slog.Int("status", sw.status),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.Int("size", sw.size),
		}
		if info.userID != 0 {
			attrs = append(attrs, slog.Int("user_id", info.userID))
		}
		slog.LogAttrs(r.Context(), level, "request", attrs...)
	})
}
