package middleware

import (
	"net/http"
)

// DefaultMaxBodyBytes caps post and auth payloads (1 MiB).
const DefaultMaxBodyBytes = 1 << 20

const MsgBodyTooLarge = "Request body too large"

// MaxBytes bounds the body of write routes. A declared Content-Length over
// the limit is refused with 413 before the handler runs; a chunked body is
// cut off at the limit and the handler's decode fails with
// *http.MaxBytesError.
func MaxBytes(limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				w.Header().Set("Connection", "close")
				writeMessage(w, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
