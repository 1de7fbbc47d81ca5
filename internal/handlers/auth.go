package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/crucial707/inkwell/internal/apperror"
	"github.com/crucial707/inkwell/internal/auth"
	"github.com/crucial707/inkwell/internal/middleware"
	"github.com/crucial707/inkwell/internal/models"
	"github.com/crucial707/inkwell/internal/repo"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

const msgInvalidCredentials = "Invalid credentials"

// maxPasswordBytes is the longest input bcrypt will hash.
const maxPasswordBytes = 72

// ==========================
// Auth Handler
// ==========================
type AuthHandler struct {
	UserRepo *repo.UserRepo
	Issuer   *auth.Issuer
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// UserResponse is returned by me.
type UserResponse struct {
	User *models.User `json:"user"`
}

// Usernames never contain "@" so a login identifier resolves to one account.
type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,excludes=@"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

// ==========================
// Register (new accounts always get the user role)
// ==========================
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input registerRequest
	if err := decodeJSON(r, &input); err != nil {
		WriteError(w, r, err)
		return
	}
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateStruct(input); err != nil {
		WriteError(w, r, err)
		return
	}

	usernameTaken, emailTaken, err := h.UserRepo.Taken(r.Context(), input.Username, input.Email)
	if err != nil {
		WriteError(w, r, apperror.NewInternal("Server error during registration", err))
		return
	}
	if usernameTaken || emailTaken {
		WriteError(w, r, conflictFor(usernameTaken, emailTaken, nil))
		return
	}

	user, err := h.UserRepo.Create(r.Context(), input.Username, input.Email, input.Password, models.RoleUser)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			WriteError(w, r, conflictFor(pqErr.Constraint == "users_username_key", pqErr.Constraint == "users_email_key", err))
			return
		}
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			msg := fmt.Sprintf("Password must be at most %d bytes", maxPasswordBytes)
			WriteError(w, r, apperror.NewValidation(msg, []apperror.FieldError{{Field: "password", Message: msg}}))
			return
		}
		WriteError(w, r, apperror.NewInternal("Server error during registration", err))
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, user)
}

func conflictFor(usernameTaken, emailTaken bool, cause error) error {
	switch {
	case emailTaken:
		return apperror.NewConflict("User with this email already exists", cause)
	case usernameTaken:
		return apperror.NewConflict("Username is already taken", cause)
	default:
		return apperror.NewConflict("User already exists", cause)
	}
}

// ==========================
// Login (identifier is an email address or a username)
// ==========================
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Identifier string `json:"identifier"`
		Email      string `json:"email"`
		Username   string `json:"username"`
		Password   string `json:"password"`
	}
	if err := decodeJSON(r, &input); err != nil {
		WriteError(w, r, err)
		return
	}

	identifier := strings.TrimSpace(firstNonEmpty(input.Identifier, input.Email, input.Username))
	if identifier == "" || input.Password == "" {
		fields := []apperror.FieldError{}
		if identifier == "" {
			fields = append(fields, apperror.FieldError{Field: "email", Message: "Email or username is required"})
		}
		if input.Password == "" {
			fields = append(fields, apperror.FieldError{Field: "password", Message: "Password is required"})
		}
		WriteError(w, r, apperror.NewValidation(validationMessage(fields), fields))
		return
	}

	user, err := h.UserRepo.GetByLogin(r.Context(), identifier)
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, r, apperror.NewAuth(msgInvalidCredentials, nil))
		return
	}
	if err != nil {
		WriteError(w, r, apperror.NewInternal("Server error during login", err))
		return
	}
	if !repo.CheckPassword(user, input.Password) {
		WriteError(w, r, apperror.NewAuth(msgInvalidCredentials, nil))
		return
	}

	h.respondWithToken(w, r, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user *models.User) {
	token, err := h.Issuer.Issue(user)
	if err != nil {
		WriteError(w, r, apperror.NewInternal(ErrMessageInternal, err))
		return
	}
	JSON(w, status, AuthResponse{Token: token, User: user})
}

// ==========================
// Me (the user behind the bearer token)
// ==========================
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		WriteError(w, r, apperror.NewAuth(middleware.MsgNoToken, nil))
		return
	}
	JSON(w, http.StatusOK, UserResponse{User: user})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
