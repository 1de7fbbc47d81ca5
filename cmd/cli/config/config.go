package config

import (
	"errors"
	"os"

	"github.com/crucial707/inkwell/internal/client"
	"github.com/crucial707/inkwell/internal/session"
)

const defaultAPIURL = "http://localhost:8080"

// ErrNotLoggedIn is returned by commands that need a session when none is stored.
var ErrNotLoggedIn = errors.New("not logged in, run `blogctl login` first")

// APIURL returns the base URL for the blog API.
// It can be overridden with the BLOG_API_URL environment variable.
func APIURL() string {
	if v := os.Getenv("BLOG_API_URL"); v != "" {
		return v
	}
	return defaultAPIURL
}

// SessionPath returns the session file location.
// It can be overridden with the BLOGCTL_SESSION_FILE environment variable.
func SessionPath() (string, error) {
	if v := os.Getenv("BLOGCTL_SESSION_FILE"); v != "" {
		return v, nil
	}
	return session.DefaultPath()
}

// Open loads the cached session, if any, and returns an API client that
// uses it.
func Open() (*client.Client, *session.Manager, error) {
	path, err := SessionPath()
	if err != nil {
		return nil, nil, err
	}
	store := session.FileStore{Path: path}
	manager := session.NewManager(store)
	if _, err := manager.Bootstrap(); err != nil && !errors.Is(err, session.ErrNoSession) {
		return nil, nil, err
	}
	return client.New(APIURL(), store), manager, nil
}

// Explain rewrites errors a user can act on.
func Explain(err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return errors.New(apiErr.Message + " (session cleared, run `blogctl login`)")
		}
		return errors.New("session expired, run `blogctl login`")
	}
	return err
}
