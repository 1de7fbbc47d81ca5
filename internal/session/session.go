// Package session keeps the signed-in state of the command-line and web
// frontends: the bearer token and a snapshot of the user it belongs to.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crucial707/inkwell/internal/models"
)

var (
	// ErrNoSession means no session is stored.
	ErrNoSession = errors.New("no session")
	// ErrRevoked means the API rejected the stored token.
	ErrRevoked = errors.New("session revoked")
)

// Session is a token and the user snapshot cached with it.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Store persists one session.
type Store interface {
	Load() (*Session, error)
	Save(*Session) error
	Clear() error
}

// FileStore keeps the session as JSON in a file readable only by its owner.
type FileStore struct {
	Path string
}

// DefaultPath is the session file under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "blogctl", "session.json"), nil
}

func (s FileStore) Load() (*Session, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("read session %s: %w", s.Path, err)
	}
	if sess.Token == "" {
		return nil, ErrNoSession
	}
	return &sess, nil
}

func (s FileStore) Save(sess *Session) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.Path, b, 0o600); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(s.Path, 0o600)
}

func (s FileStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryStore holds the session in memory only.
type MemoryStore struct {
	sess *Session
}

func (m *MemoryStore) Load() (*Session, error) {
	if m.sess == nil {
		return nil, ErrNoSession
	}
	cp := *m.sess
	return &cp, nil
}

func (m *MemoryStore) Save(sess *Session) error {
	cp := *sess
	m.sess = &cp
	return nil
}

func (m *MemoryStore) Clear() error {
	m.sess = nil
	return nil
}

// Authenticator resolves the user behind the stored token.
type Authenticator interface {
	Me(ctx context.Context) (*models.User, error)
}

// Manager owns the current session. A cached session is trusted as soon
// as it is loaded and replaced or dropped once the API has been asked.
type Manager struct {
	store   Store
	current *Session
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Bootstrap loads the cached session, if any, and makes it current.
func (m *Manager) Bootstrap() (*Session, error) {
	sess, err := m.store.Load()
	if err != nil {
		m.current = nil
		return nil, err
	}
	m.current = sess
	return sess, nil
}

// Current returns the session in memory, or nil when signed out.
func (m *Manager) Current() *Session {
	return m.current
}

// Authenticated reports whether a session is current.
func (m *Manager) Authenticated() bool {
	return m.current != nil && m.current.Token != ""
}

// Start persists a fresh session after login or registration.
func (m *Manager) Start(token string, user *models.User) error {
	sess := &Session{Token: token, User: user}
	if err := m.store.Save(sess); err != nil {
		return err
	}
	m.current = sess
	return nil
}

// Revalidate asks the API who the current token belongs to and refreshes
// the user snapshot. A revoked token signs the manager out.
func (m *Manager) Revalidate(ctx context.Context, a Authenticator) (*Session, error) {
	if !m.Authenticated() {
		return nil, ErrNoSession
	}
	user, err := a.Me(ctx)
	if errors.Is(err, ErrRevoked) {
		if clearErr := m.Logout(); clearErr != nil {
			return nil, clearErr
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	m.current.User = user
	if err := m.store.Save(m.current); err != nil {
		return nil, err
	}
	return m.current, nil
}

// Logout clears both the stored and the in-memory session.
func (m *Manager) Logout() error {
	m.current = nil
	return m.store.Clear()
}
