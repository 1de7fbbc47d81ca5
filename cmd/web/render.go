package main

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/crucial707/inkwell/internal/models"
	"github.com/crucial707/inkwell/internal/pagination"
)

//go:embed templates
var templatesFS embed.FS

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("Jan 2, 2006") },
	"join": strings.Join,
	"add":  func(a, b int) int { return a + b },
	"sub":  func(a, b int) int { return a - b },
}

// loadTemplates parses every page together with the shared layout.
func loadTemplates() (map[string]*template.Template, error) {
	layout, err := templatesFS.ReadFile("templates/layout.html")
	if err != nil {
		return nil, err
	}
	pages, err := fs.Glob(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	out := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		name := path.Base(p)
		if name == "layout.html" {
			continue
		}
		content, err := templatesFS.ReadFile(p)
		if err != nil {
			return nil, err
		}
		t, err := template.New("layout").Funcs(funcs).Parse(string(layout))
		if err != nil {
			return nil, fmt.Errorf("parse layout: %w", err)
		}
		if _, err := t.New(name).Parse(string(content)); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// page is the data every template receives.
type page struct {
	Title string
	User  *models.User
	Error string
	Data  interface{}
}

func (a *app) render(w http.ResponseWriter, status int, name string, p page) {
	t, ok := a.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		slog.Error("template execute", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// pager is the view model of the page links under a list.
type pager struct {
	pagination.Pagination
	Pages []int
	// Query is appended to every page link, e.g. "&status=draft".
	Query template.URL
}

func newPager(p pagination.Pagination, query string) pager {
	return pager{
		Pagination: p,
		Pages:      pagination.Window(p.CurrentPage, p.TotalPages, pagination.MaxWindow),
		Query:      template.URL(query),
	}
}
