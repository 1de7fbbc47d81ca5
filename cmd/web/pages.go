package main

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/crucial707/inkwell/internal/apperror"
	"github.com/crucial707/inkwell/internal/client"
	blogmw "github.com/crucial707/inkwell/internal/middleware"
	"github.com/crucial707/inkwell/internal/models"
	"github.com/crucial707/inkwell/internal/pagination"
	"github.com/crucial707/inkwell/internal/session"
	"github.com/go-chi/chi/v5"
)

const (
	homeLimit   = 5
	recentLimit = 5
)

type app struct {
	apiBase   string
	http      *http.Client
	templates map[string]*template.Template
}

type ctxKey int

const (
	storeKey ctxKey = iota
	userKey
)

func newApp(apiBase string, hc *http.Client) (*app, error) {
	t, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	return &app{apiBase: apiBase, http: hc, templates: t}, nil
}

// clientFor returns an API client bound to the cookies of this request.
func (a *app) clientFor(w http.ResponseWriter, r *http.Request) (*client.Client, *cookieStore) {
	store, ok := r.Context().Value(storeKey).(*cookieStore)
	if !ok {
		store = newCookieStore(w, r)
	}
	return client.New(a.apiBase, store, client.WithHTTPClient(a.http)), store
}

// currentUser is the cached user snapshot. It is only trusted for display.
func currentUser(r *http.Request) *models.User {
	if u, ok := r.Context().Value(userKey).(*models.User); ok {
		return u
	}
	sess, err := newCookieStore(nil, r).Load()
	if err != nil {
		return nil
	}
	return sess.User
}

// requireAdmin renders the admin area only for a session the API still
// accepts and whose role may view drafts. Anyone else goes to /login.
func (a *app) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := newCookieStore(w, r)
		manager := session.NewManager(store)
		if _, err := manager.Bootstrap(); err != nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		c := client.New(a.apiBase, store, client.WithHTTPClient(a.http))
		sess, err := manager.Revalidate(r.Context(), c)
		if errors.Is(err, session.ErrRevoked) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		if err != nil {
			a.apiFailure(w, r, err)
			return
		}
		if !sess.User.Role.Can(models.PermViewDrafts) {
			a.render(w, http.StatusForbidden, "error.html", page{
				Title: "Access denied", User: sess.User, Error: "Access denied. Admin only.",
			})
			return
		}
		blogmw.NoteUser(r.Context(), sess.User.ID)
		ctx := context.WithValue(r.Context(), storeKey, store)
		ctx = context.WithValue(ctx, userKey, sess.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// apiFailure renders the outcome of a failed API call.
func (a *app) apiFailure(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, client.ErrUnauthorized) {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusNotFound:
			a.render(w, http.StatusNotFound, "error.html", page{Title: "Not found", User: currentUser(r), Error: apiErr.Message})
			return
		case http.StatusForbidden:
			a.render(w, http.StatusForbidden, "error.html", page{Title: "Access denied", User: currentUser(r), Error: apiErr.Message})
			return
		}
	}
	slog.Error("api call failed", "path", r.URL.Path, "error", err)
	a.render(w, http.StatusBadGateway, "error.html", page{
		Title: "Something went wrong", User: currentUser(r), Error: "The blog API could not be reached. Please try again.",
	})
}

// ==========================
// Public pages
// ==========================

func (a *app) home(w http.ResponseWriter, r *http.Request) {
	c, _ := a.clientFor(w, r)
	list, err := c.ListPosts(r.Context(), 1, homeLimit)
	if err != nil {
		a.apiFailure(w, r, err)
		return
	}
	a.render(w, http.StatusOK, "home.html", page{Title: "Home", User: currentUser(r), Data: list})
}

func (a *app) postsList(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromQuery(r.URL.Query())
	c, _ := a.clientFor(w, r)
	list, err := c.ListPosts(r.Context(), params.Page, params.Limit)
	if err != nil {
		a.apiFailure(w, r, err)
		return
	}
	a.render(w, http.StatusOK, "posts.html", page{
		Title: "All posts",
		User:  currentUser(r),
		Data: map[string]interface{}{
			"Posts": list.Posts,
			"Pager": newPager(list.Pagination, ""),
		},
	})
}

func (a *app) postDetail(w http.ResponseWriter, r *http.Request) {
	c, _ := a.clientFor(w, r)
	post, err := c.GetPost(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		a.apiFailure(w, r, err)
		return
	}
	a.render(w, http.StatusOK, "post.html", page{Title: post.Title, User: currentUser(r), Data: post})
}

// ==========================
// Login / Logout
// ==========================

func (a *app) loginForm(w http.ResponseWriter, r *http.Request) {
	if u := currentUser(r); u != nil {
		http.Redirect(w, r, landingFor(u), http.StatusFound)
		return
	}
	a.render(w, http.StatusOK, "login.html", page{Title: "Login"})
}

func landingFor(u *models.User) string {
	if u.Role.Can(models.PermViewDrafts) {
		return "/admin"
	}
	return "/"
}

func (a *app) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	identifier := strings.TrimSpace(r.FormValue("identifier"))
	password := r.FormValue("password")
	form := map[string]string{"Identifier": identifier}
	if identifier == "" || password == "" {
		a.render(w, http.StatusBadRequest, "login.html", page{
			Title: "Login", Error: "Please provide email/username and password", Data: form,
		})
		return
	}

	store := newCookieStore(w, r)
	c := client.New(a.apiBase, store, client.WithHTTPClient(a.http))
	res, err := c.Login(r.Context(), identifier, password)
	if err != nil {
		msg := "Cannot reach the blog API"
		status := http.StatusBadGateway
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			msg, status = apiErr.Message, apiErr.Status
		}
		a.render(w, status, "login.html", page{Title: "Login", Error: msg, Data: form})
		return
	}
	if err := session.NewManager(store).Start(res.Token, res.User); err != nil {
		a.apiFailure(w, r, err)
		return
	}
	http.Redirect(w, r, landingFor(res.User), http.StatusFound)
}

func (a *app) logout(w http.ResponseWriter, r *http.Request) {
	_ = session.NewManager(newCookieStore(w, r)).Logout()
	http.Redirect(w, r, "/login", http.StatusFound)
}

// ==========================
// Dashboard
// ==========================

type dashboardData struct {
	Total       int
	Published   int
	Drafts      int
	Recent      []models.Post
	RecentViews int
}

func (a *app) dashboard(w http.ResponseWriter, r *http.Request) {
	c, _ := a.clientFor(w, r)
	ctx := r.Context()

	var d dashboardData
	recent, err := c.ListAdminPosts(ctx, 1, recentLimit, "all")
	if err != nil {
		a.apiFailure(w, r, err)
		return
	}
	d.Total = recent.Pagination.TotalPosts
	d.Recent = recent.Posts
	for _, p := range recent.Posts {
		d.RecentViews += p.Views
	}
	for status, dst := range map[string]*int{"published": &d.Published, "draft": &d.Drafts} {
		list, err := c.ListAdminPosts(ctx, 1, 1, status)
		if err != nil {
			a.apiFailure(w, r, err)
			return
		}
		*dst = list.Pagination.TotalPosts
	}

	a.render(w, http.StatusOK, "dashboard.html", page{Title: "Dashboard", User: currentUser(r), Data: d})
}

// ==========================
// Management table
// ==========================

func statusFilter(s string) string {
	switch s {
	case "draft", "published":
		return s
	default:
		return "all"
	}
}

func (a *app) adminPosts(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromQuery(r.URL.Query())
	status := statusFilter(r.URL.Query().Get("status"))
	c, _ := a.clientFor(w, r)
	list, err := c.ListAdminPosts(r.Context(), params.Page, params.Limit, status)
	if err != nil {
		a.apiFailure(w, r, err)
		return
	}
	a.render(w, http.StatusOK, "admin_posts.html", page{
		Title: "Manage posts",
		User:  currentUser(r),
		Data: map[string]interface{}{
			"Posts":   list.Posts,
			"Status":  status,
			"Pager":   newPager(list.Pagination, "&status="+url.QueryEscape(status)),
			"Page":    params.Page,
			"Flash":   r.URL.Query().Get("flash"),
			"Filters": []string{"all", "published", "draft"},
		},
	})
}

// ==========================
// Editor
// ==========================

// editorForm is the editable state of a post in the editor.
type editorForm struct {
	ID       int
	Title    string
	Content  string
	Excerpt  string
	Status   string
	Tags     string
	Featured bool
	Errors   map[string]string
}

func formFromPost(p *models.Post) editorForm {
	return editorForm{
		ID:       p.ID,
		Title:    p.Title,
		Content:  p.Content,
		Excerpt:  p.Excerpt,
		Status:   string(p.Status),
		Tags:     strings.Join(p.Tags, ", "),
		Featured: p.Featured,
	}
}

func formFromRequest(r *http.Request) editorForm {
	return editorForm{
		Title:    r.FormValue("title"),
		Content:  r.FormValue("content"),
		Excerpt:  r.FormValue("excerpt"),
		Status:   r.FormValue("status"),
		Tags:     r.FormValue("tags"),
		Featured: r.FormValue("featured") == "on",
	}
}

func (f editorForm) tags() []string {
	return models.NormalizeTags(strings.Split(f.Tags, ","))
}

func (a *app) renderEditor(w http.ResponseWriter, r *http.Request, status int, f editorForm, err error) {
	title := "New post"
	if f.ID > 0 {
		title = "Edit post"
	}
	p := page{Title: title, User: currentUser(r)}
	if err != nil {
		var apiErr *client.APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
			a.apiFailure(w, r, err)
			return
		}
		p.Error = apiErr.Message
		f.Errors = fieldErrors(apiErr.Errors)
	}
	if f.Status == "" {
		f.Status = string(models.StatusPublished)
	}
	p.Data = f
	a.render(w, status, "editor.html", p)
}

func fieldErrors(fields []apperror.FieldError) map[string]string {
	out := make(map[string]string, len(fields))
	for _, fe := range fields {
		out[fe.Field] = fe.Message
	}
	return out
}

func (a *app) editorNew(w http.ResponseWriter, r *http.Request) {
	a.renderEditor(w, r, http.StatusOK, editorForm{}, nil)
}

func (a *app) createPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	f := formFromRequest(r)
	c, _ := a.clientFor(w, r)
	_, err := c.CreatePost(r.Context(), client.CreatePostRequest{
		Title:    f.Title,
		Content:  f.Content,
		Excerpt:  f.Excerpt,
		Status:   f.Status,
		Tags:     f.tags(),
		Featured: f.Featured,
	})
	if err != nil {
		a.renderEditor(w, r, http.StatusBadRequest, f, err)
		return
	}
	http.Redirect(w, r, "/admin/posts?flash=created", http.StatusSeeOther)
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil && id > 0
}

func (a *app) notFound(w http.ResponseWriter, r *http.Request) {
	a.render(w, http.StatusNotFound, "error.html", page{Title: "Not found", User: currentUser(r), Error: "Post not found"})
}

func (a *app) editorEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		a.notFound(w, r)
		return
	}
	c, _ := a.clientFor(w, r)
	post, err := c.GetAdminPost(r.Context(), id)
	if err != nil {
		a.apiFailure(w, r, err)
		return
	}
	a.renderEditor(w, r, http.StatusOK, formFromPost(post), nil)
}

func (a *app) updatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		a.notFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	f := formFromRequest(r)
	f.ID = id
	tags := f.tags()
	c, _ := a.clientFor(w, r)
	_, err := c.UpdatePost(r.Context(), id, client.UpdatePostRequest{
		Title:    &f.Title,
		Content:  &f.Content,
		Excerpt:  &f.Excerpt,
		Status:   &f.Status,
		Tags:     &tags,
		Featured: &f.Featured,
	})
	if err != nil {
		a.renderEditor(w, r, http.StatusBadRequest, f, err)
		return
	}
	http.Redirect(w, r, "/admin/posts?flash=updated", http.StatusSeeOther)
}

// ==========================
// Delete
// ==========================

func (a *app) deleteConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		a.notFound(w, r)
		return
	}
	c, _ := a.clientFor(w, r)
	post, err := c.GetAdminPost(r.Context(), id)
	if err != nil {
		a.apiFailure(w, r, err)
		return
	}
	params := pagination.FromQuery(r.URL.Query())
	a.render(w, http.StatusOK, "delete_confirm.html", page{
		Title: "Delete post",
		User:  currentUser(r),
		Data: map[string]interface{}{
			"Post":   post,
			"Page":   params.Page,
			"Status": statusFilter(r.URL.Query().Get("status")),
		},
	})
}

func (a *app) deletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		a.notFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	params := pagination.FromQuery(r.PostForm)
	status := statusFilter(r.PostFormValue("status"))

	c, _ := a.clientFor(w, r)
	if err := c.DeletePost(r.Context(), id); err != nil {
		a.apiFailure(w, r, err)
		return
	}

	// Land on the same page unless the delete emptied it.
	target := params.Page
	if list, err := c.ListAdminPosts(r.Context(), params.Page, params.Limit, status); err == nil {
		target = pagination.AfterDelete(params.Page, len(list.Posts))
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(target))
	q.Set("status", status)
	q.Set("flash", "deleted")
	http.Redirect(w, r, "/admin/posts?"+q.Encode(), http.StatusSeeOther)
}
