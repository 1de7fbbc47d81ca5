package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/crucial707/inkwell/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const userColumns = `id, username, email, password_hash, role, created_at`

// ==========================
// UserRepo
// ==========================
type UserRepo struct {
	DB *sql.DB
}

// ==========================
// Constructor
// ==========================
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var role string
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &role, &user.CreatedAt); err != nil {
		return nil, err
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}
	user.Role = r
	return user, nil
}

// ==========================
// Create User (password stored as bcrypt hash, email lowercased)
// ==========================
func (r *UserRepo) Create(ctx context.Context, username, email, password string, role models.Role) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	return scanUser(r.DB.QueryRowContext(ctx, query,
		username, strings.ToLower(email), string(hash), string(role)))
}

// ==========================
// Get By ID
// ==========================
func (r *UserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.DB.QueryRowContext(ctx, query, id))
}

// ==========================
// Get By Login (email or username; an email match wins)
// ==========================
func (r *UserRepo) GetByLogin(ctx context.Context, identifier string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR username = $2
		ORDER BY (email = $1) DESC, id LIMIT 1`
	return scanUser(r.DB.QueryRowContext(ctx, query, strings.ToLower(identifier), identifier))
}

// GetFirstAdmin returns the oldest admin account.
func (r *UserRepo) GetFirstAdmin(ctx context.Context) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY id LIMIT 1`
	return scanUser(r.DB.QueryRowContext(ctx, query, string(models.RoleAdmin)))
}

// Taken reports which of username and email are already registered.
func (r *UserRepo) Taken(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error) {
	query := `
		SELECT
			COALESCE(bool_or(username = $1), false),
			COALESCE(bool_or(email = $2), false)
		FROM users
		WHERE username = $1 OR email = $2
	`
	err = r.DB.QueryRowContext(ctx, query, username, strings.ToLower(email)).
		Scan(&usernameTaken, &emailTaken)
	return usernameTaken, emailTaken, err
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}
