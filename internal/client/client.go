// Package client is the typed HTTP client of the blog API used by the
// command-line and web frontends.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crucial707/inkwell/internal/apperror"
	"github.com/crucial707/inkwell/internal/models"
	"github.com/crucial707/inkwell/internal/pagination"
	"github.com/crucial707/inkwell/internal/session"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 10 * time.Second

// ErrUnauthorized is returned when the API rejects the credentials. The
// stored session has already been cleared when a caller sees it.
var ErrUnauthorized = fmt.Errorf("unauthorized: %w", session.ErrRevoked)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Errors  []apperror.FieldError
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return e.Message
}

// Unwrap exposes ErrUnauthorized for 401 responses.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Client calls the blog API. The token of the stored session, if any, is
// sent as a bearer token on every request.
type Client struct {
	baseURL string
	http    *http.Client
	store   session.Store
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the API at baseURL. store may be nil.
func New(baseURL string, store session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		store:   store,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) token() string {
	if c.store == nil {
		return ""
	}
	sess, err := c.store.Load()
	if err != nil || sess == nil {
		return ""
	}
	return sess.Token
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Message string                `json:"message"`
			Errors  []apperror.FieldError `json:"errors"`
		}
		if json.Unmarshal(data, &envelope) == nil {
			apiErr.Message = envelope.Message
			apiErr.Errors = envelope.Errors
		}
		if resp.StatusCode == http.StatusUnauthorized && c.store != nil {
			if err := c.store.Clear(); err != nil {
				return errors.Join(apiErr, err)
			}
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// AuthResult is the response of register and login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// PostList is one page of posts.
type PostList struct {
	Posts      []models.Post         `json:"posts"`
	Pagination pagination.Pagination `json:"pagination"`
}

// CreatePostRequest is the body of a create.
type CreatePostRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Excerpt  string   `json:"excerpt,omitempty"`
	Status   string   `json:"status,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Featured bool     `json:"featured,omitempty"`
}

// UpdatePostRequest is a partial update. Nil fields are not sent.
type UpdatePostRequest struct {
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Excerpt  *string   `json:"excerpt,omitempty"`
	Status   *string   `json:"status,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	Featured *bool     `json:"featured,omitempty"`
}

type postEnvelope struct {
	Message string       `json:"message"`
	Post    *models.Post `json:"post"`
}

func (c *Client) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/register", nil,
		map[string]string{"username": username, "email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login signs in with an email address or a username.
func (c *Client) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/login", nil,
		map[string]string{"identifier": identifier, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out struct {
		User *models.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

// ListPosts returns a page of published posts.
func (c *Client) ListPosts(ctx context.Context, page, limit int) (*PostList, error) {
	var out PostList
	if err := c.do(ctx, http.MethodGet, "/posts", pageQuery(page, limit), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPost returns a published post by slug. The API counts it as a view.
func (c *Client) GetPost(ctx context.Context, slug string) (*models.Post, error) {
	var out postEnvelope
	if err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(slug), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Post, nil
}

// ListAdminPosts returns a page of posts of any status. status is all,
// draft or published; empty means all.
func (c *Client) ListAdminPosts(ctx context.Context, page, limit int, status string) (*PostList, error) {
	q := pageQuery(page, limit)
	if status != "" {
		q.Set("status", status)
	}
	var out PostList
	if err := c.do(ctx, http.MethodGet, "/posts/admin/all", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAdminPost(ctx context.Context, id int) (*models.Post, error) {
	var out postEnvelope
	if err := c.do(ctx, http.MethodGet, "/posts/admin/"+strconv.Itoa(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Post, nil
}

func (c *Client) CreatePost(ctx context.Context, in CreatePostRequest) (*models.Post, error) {
	var out postEnvelope
	if err := c.do(ctx, http.MethodPost, "/posts", nil, in, &out); err != nil {
		return nil, err
	}
	return out.Post, nil
}

func (c *Client) UpdatePost(ctx context.Context, id int, in UpdatePostRequest) (*models.Post, error) {
	var out postEnvelope
	if err := c.do(ctx, http.MethodPut, "/posts/"+strconv.Itoa(id), nil, in, &out); err != nil {
		return nil, err
	}
	return out.Post, nil
}

func (c *Client) DeletePost(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+strconv.Itoa(id), nil, nil, nil)
}

// ListAudit returns recent post activity, newest first.
func (c *Client) ListAudit(ctx context.Context, limit, offset int) ([]models.AuditEntry, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var out []models.AuditEntry
	if err := c.do(ctx, http.MethodGet, "/audit", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
