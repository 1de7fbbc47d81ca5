package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/crucial707/inkwell/internal/apperror"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// ErrMessageInternal is the generic message for 500 responses. Do not expose internal details to clients.
const ErrMessageInternal = "Server error"

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Message string                `json:"message"`
	Errors  []apperror.FieldError `json:"errors,omitempty"`
}

// MessageResponse is the body of a 2xx response that only carries a message.
type MessageResponse struct {
	Message string `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// JSONError sends a JSON error response with a single "message" field.
func JSONError(w http.ResponseWriter, message string, status int) {
	JSON(w, status, ErrorResponse{Message: message})
}

// WriteError maps err to its status and envelope. Internal errors are
// logged with the request id; only their generic message is sent.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.From(err)
	status := appErr.StatusCode()
	if status >= http.StatusInternalServerError {
		slog.Error(appErr.Message,
			"request_id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", appErr.Err)
	}
	JSON(w, status, ErrorResponse{Message: appErr.Message, Errors: appErr.Fields})
}
