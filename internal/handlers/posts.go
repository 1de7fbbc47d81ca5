package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/crucial707/inkwell/internal/apperror"
	"github.com/crucial707/inkwell/internal/cache"
	"github.com/crucial707/inkwell/internal/metrics"
	"github.com/crucial707/inkwell/internal/middleware"
	"github.com/crucial707/inkwell/internal/models"
	"github.com/crucial707/inkwell/internal/pagination"
	"github.com/crucial707/inkwell/internal/repo"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const (
	msgPostNotFound = "Post not found"
	msgPostCreated  = "Post created successfully"
	msgPostUpdated  = "Post updated successfully"
	msgPostDeleted  = "Post deleted successfully"

	statusFilterAll = "all"
)

// ListCache caches pages of the public post listing. A nil ListCache
// disables caching. Keys carry the generation read before the database,
// so a fill racing an Invalidate lands under a key nobody reads.
type ListCache interface {
	Generation(ctx context.Context) (int64, error)
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}) error
	Invalidate(ctx context.Context) error
}

// PostHandler serves the public and admin post endpoints.
type PostHandler struct {
	Posts *repo.PostRepo
	Audit *repo.AuditRepo
	Cache ListCache
	Now   func() time.Time
}

// PostListResponse is one page of posts.
type PostListResponse struct {
	Posts      []models.Post         `json:"posts"`
	Pagination pagination.Pagination `json:"pagination"`
}

// PostResponse wraps a single post, with a message on writes.
type PostResponse struct {
	Message string       `json:"message,omitempty"`
	Post    *models.Post `json:"post"`
}

func (h *PostHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// ==========================
// List Published (public)
// ==========================
func (h *PostHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromQuery(r.URL.Query())
	reqID := chimw.GetReqID(r.Context())

	listCache := h.Cache
	var key string
	if listCache != nil {
		gen, err := listCache.Generation(r.Context())
		if err != nil {
			metrics.IncCacheLookup("error")
			slog.Warn("list cache generation read failed", "request_id", reqID, "error", err)
			listCache = nil
		}
		key = cache.PublishedListKey(gen, params.Page, params.Limit)
	}

	if listCache != nil {
		var cached PostListResponse
		hit, err := listCache.GetJSON(r.Context(), key, &cached)
		switch {
		case err != nil:
			metrics.IncCacheLookup("error")
			slog.Warn("list cache read failed", "request_id", reqID, "error", err)
		case hit:
			metrics.IncCacheLookup("hit")
			JSON(w, http.StatusOK, cached)
			return
		default:
			metrics.IncCacheLookup("miss")
		}
	}

	published := models.StatusPublished
	posts, total, err := h.Posts.List(r.Context(), repo.PostFilter{Status: &published}, params.Limit, params.Offset())
	if err != nil {
		WriteError(w, r, apperror.NewInternal("Server error while fetching posts", err))
		return
	}
	resp := PostListResponse{Posts: posts, Pagination: pagination.New(params, total)}

	if listCache != nil {
		if err := listCache.SetJSON(r.Context(), key, resp); err != nil {
			slog.Warn("list cache write failed", "request_id", reqID, "error", err)
		}
	}
	JSON(w, http.StatusOK, resp)
}

// ==========================
// Get By Slug (public, counts a view)
// ==========================
func (h *PostHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	post, err := h.Posts.ViewPublished(r.Context(), chi.URLParam(r, "slug"))
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, r, apperror.NewNotFound(msgPostNotFound, nil))
		return
	}
	if err != nil {
		WriteError(w, r, apperror.NewInternal("Server error while fetching post", err))
		return
	}
	metrics.IncPostViews()
	JSON(w, http.StatusOK, PostResponse{Post: post})
}

// ==========================
// List Admin (every status, optional filter)
// ==========================
func (h *PostHandler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromQuery(r.URL.Query())

	filter, err := parseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	posts, total, err := h.Posts.List(r.Context(), filter, params.Limit, params.Offset())
	if err != nil {
		WriteError(w, r, apperror.NewInternal("Server error while fetching posts", err))
		return
	}
	JSON(w, http.StatusOK, PostListResponse{Posts: posts, Pagination: pagination.New(params, total)})
}

// parseStatusFilter accepts all, draft or published. Empty means all.
func parseStatusFilter(raw string) (repo.PostFilter, error) {
	if raw == "" || raw == statusFilterAll {
		return repo.PostFilter{}, nil
	}
	status := models.Status(raw)
	if !status.Valid() {
		msg := "Status must be one of: all, draft, published"
		return repo.PostFilter{}, apperror.NewValidation(msg, []apperror.FieldError{{Field: "status", Message: msg}})
	}
	return repo.PostFilter{Status: &status}, nil
}

// ==========================
// Get Admin By ID (no view count)
// ==========================
func (h *PostHandler) GetAdminByID(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		WriteError(w, r, apperror.NewNotFound(msgPostNotFound, nil))
		return
	}
	post, err := h.Posts.GetByID(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, r, apperror.NewNotFound(msgPostNotFound, nil))
		return
	}
	if err != nil {
		WriteError(w, r, apperror.NewInternal("Server error while fetching post", err))
		return
	}
	JSON(w, http.StatusOK, PostResponse{Post: post})
}

type createPostRequest struct {
	Title    string   `json:"title" validate:"required,max=200"`
	Content  string   `json:"content" validate:"required"`
	Excerpt  string   `json:"excerpt" validate:"max=300"`
	Status   string   `json:"status" validate:"omitempty,oneof=draft published"`
	Tags     []string `json:"tags"`
	Featured bool     `json:"featured"`
}

// ==========================
// Create
// ==========================
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		WriteError(w, r, apperror.NewAuth(middleware.MsgNoToken, nil))
		return
	}

	var input createPostRequest
	if err := decodeJSON(r, &input); err != nil {
		WriteError(w, r, err)
		return
	}
	input.Title = strings.TrimSpace(input.Title)
	if err := validateStruct(input); err != nil {
		WriteError(w, r, err)
		return
	}

	post := models.DerivePost(models.PostInput{
		Title:    input.Title,
		Content:  input.Content,
		Excerpt:  input.Excerpt,
		Status:   models.Status(input.Status),
		Tags:     input.Tags,
		Featured: input.Featured,
	}, models.AuthorRef{ID: user.ID, Username: user.Username}, h.now())

	created, err := h.Posts.Create(r.Context(), post)
	if err != nil {
		WriteError(w, r, apperror.NewInternal("Server error while creating post", err))
		return
	}

	h.afterMutation(r, user, repo.AuditCreate, created.ID, created.Slug)
	JSON(w, http.StatusCreated, PostResponse{Message: msgPostCreated, Post: &created})
}

type updatePostRequest struct {
	Title    *string   `json:"title"`
	Content  *string   `json:"content"`
	Excerpt  *string   `json:"excerpt"`
	Status   *string   `json:"status"`
	Tags     *[]string `json:"tags"`
	Featured *bool     `json:"featured"`
}

// patch validates the supplied fields and converts them. Absent fields
// stay nil and are left untouched by the update.
func (in updatePostRequest) patch() (models.PostPatch, error) {
	var (
		p      models.PostPatch
		fields []apperror.FieldError
	)
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		switch {
		case title == "":
			fields = append(fields, apperror.FieldError{Field: "title", Message: "Title cannot be empty"})
		case utf8.RuneCountInString(title) > models.MaxTitleLen:
			fields = append(fields, apperror.FieldError{Field: "title", Message: fmt.Sprintf("Title must be at most %d characters", models.MaxTitleLen)})
		default:
			p.Title = &title
		}
	}
	if in.Content != nil {
		if *in.Content == "" {
			fields = append(fields, apperror.FieldError{Field: "content", Message: "Content cannot be empty"})
		} else {
			p.Content = in.Content
		}
	}
	if in.Excerpt != nil {
		if utf8.RuneCountInString(*in.Excerpt) > models.MaxExcerptLen {
			fields = append(fields, apperror.FieldError{Field: "excerpt", Message: fmt.Sprintf("Excerpt must be at most %d characters", models.MaxExcerptLen)})
		} else {
			p.Excerpt = in.Excerpt
		}
	}
	if in.Status != nil {
		status := models.Status(*in.Status)
		if !status.Valid() {
			fields = append(fields, apperror.FieldError{Field: "status", Message: "Status must be one of: draft, published"})
		} else {
			p.Status = &status
		}
	}
	if in.Tags != nil {
		tags := models.NormalizeTags(*in.Tags)
		p.Tags = &tags
	}
	p.Featured = in.Featured

	if len(fields) > 0 {
		return models.PostPatch{}, apperror.NewValidation(validationMessage(fields), fields)
	}
	return p, nil
}

// ==========================
// Update (partial)
// ==========================
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		WriteError(w, r, apperror.NewAuth(middleware.MsgNoToken, nil))
		return
	}
	id, ok := postID(r)
	if !ok {
		WriteError(w, r, apperror.NewNotFound(msgPostNotFound, nil))
		return
	}

	var input updatePostRequest
	if err := decodeJSON(r, &input); err != nil {
		WriteError(w, r, err)
		return
	}
	patch, err := input.patch()
	if err != nil {
		WriteError(w, r, err)
		return
	}

	post, err := h.Posts.Update(r.Context(), id, patch)
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, r, apperror.NewNotFound(msgPostNotFound, nil))
		return
	}
	if err != nil {
		WriteError(w, r, apperror.NewInternal("Server error while updating post", err))
		return
	}

	h.afterMutation(r, user, repo.AuditUpdate, post.ID, post.Slug)
	JSON(w, http.StatusOK, PostResponse{Message: msgPostUpdated, Post: post})
}

// ==========================
// Delete (permanent)
// ==========================
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		WriteError(w, r, apperror.NewAuth(middleware.MsgNoToken, nil))
		return
	}
	id, ok := postID(r)
	if !ok {
		WriteError(w, r, apperror.NewNotFound(msgPostNotFound, nil))
		return
	}

	err := h.Posts.Delete(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, r, apperror.NewNotFound(msgPostNotFound, nil))
		return
	}
	if err != nil {
		WriteError(w, r, apperror.NewInternal("Server error while deleting post", err))
		return
	}

	h.afterMutation(r, user, repo.AuditDelete, id, "")
	JSON(w, http.StatusOK, MessageResponse{Message: msgPostDeleted})
}

// afterMutation records the audit entry, counts the mutation and drops
// every cached public page. Failures are logged and never fail the request.
func (h *PostHandler) afterMutation(r *http.Request, user *models.User, action string, postID int, details string) {
	ctx := r.Context()
	reqID := chimw.GetReqID(ctx)

	metrics.IncPostMutation(action)

	if h.Audit != nil {
		if err := h.Audit.Log(ctx, user.ID, action, repo.ResourcePost, postID, details); err != nil {
			slog.Warn("audit log failed", "request_id", reqID, "action", action, "post_id", postID, "error", err)
		}
	}
	if h.Cache != nil {
		if err := h.Cache.Invalidate(ctx); err != nil {
			slog.Warn("list cache invalidation failed", "request_id", reqID, "error", err)
		}
	}
}

func postID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil && id > 0
}
