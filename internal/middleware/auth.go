package middleware

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/crucial707/inkwell/internal/auth"
	"github.com/crucial707/inkwell/internal/models"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type key string

const userKey key = "user"

const (
	MsgNoToken      = "No token, authorization denied"
	MsgInvalidToken = "Token is not valid"
	MsgAdminOnly    = "Access denied. Admin only."
)

// UserLoader resolves the account a token refers to.
type UserLoader interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

// Authenticate verifies the bearer token, loads the user it names and
// stores it in the request context. Missing or bad tokens get a 401.
func Authenticate(issuer *auth.Issuer, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || strings.TrimSpace(tokenStr) == "" {
				writeMessage(w, http.StatusUnauthorized, MsgNoToken)
				return
			}

			claims, err := issuer.Parse(strings.TrimSpace(tokenStr))
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, MsgInvalidToken)
				return
			}

			user, err := users.GetByID(r.Context(), claims.UserID)
			if errors.Is(err, sql.ErrNoRows) {
				writeMessage(w, http.StatusUnauthorized, MsgInvalidToken)
				return
			}
			if err != nil {
				slog.Error("load token user",
					"request_id", chimw.GetReqID(r.Context()),
					"user_id", claims.UserID,
					"error", err)
				writeMessage(w, http.StatusInternalServerError, "Server error")
				return
			}

			NoteUser(r.Context(), user.ID)
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// Require rejects authenticated users whose role lacks perm with a 403.
// It must run after Authenticate.
func Require(perm models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, MsgNoToken)
				return
			}
			if !user.Role.Can(perm) {
				writeMessage(w, http.StatusForbidden, MsgAdminOnly)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
