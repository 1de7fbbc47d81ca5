package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/crucial707/inkwell/internal/config"
	"github.com/crucial707/inkwell/internal/db"
	"github.com/crucial707/inkwell/internal/logging"
	"github.com/crucial707/inkwell/internal/models"
	"github.com/crucial707/inkwell/internal/repo"
)

const (
	adminUsername = "admin"
	adminEmail    = "admin@blogapp.com"
	adminPassword = "password123"
)

type userStore interface {
	GetFirstAdmin(ctx context.Context) (*models.User, error)
	Create(ctx context.Context, username, email, password string, role models.Role) (*models.User, error)
}

type postStore interface {
	DeleteAll(ctx context.Context) (int64, error)
	Create(ctx context.Context, p models.Post) (models.Post, error)
}

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogFormat)

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.DSN(), cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(cfg.DatabaseURL()); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	if err := seed(ctx, repo.NewUserRepo(database), repo.NewPostRepo(database), time.Now()); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
	slog.Info("seed complete", "admin_email", adminEmail, "admin_password", adminPassword)
}

// seed ensures an admin exists and replaces every post with the samples.
func seed(ctx context.Context, users userStore, posts postStore, now time.Time) error {
	admin, err := users.GetFirstAdmin(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		admin, err = users.Create(ctx, adminUsername, adminEmail, adminPassword, models.RoleAdmin)
		if err != nil {
			return err
		}
		slog.Info("admin user created", "username", admin.Username, "email", admin.Email)
	case err != nil:
		return err
	default:
		slog.Info("admin user already exists", "username", admin.Username)
	}

	n, err := posts.DeleteAll(ctx)
	if err != nil {
		return err
	}
	slog.Info("cleared existing posts", "count", n)

	author := models.AuthorRef{ID: admin.ID, Username: admin.Username}
	samples := samplePosts()
	for i, in := range samples {
		// One minute apart, oldest first.
		at := now.Add(-time.Duration(len(samples)-i) * time.Minute)
		created, err := posts.Create(ctx, models.DerivePost(in, author, at))
		if err != nil {
			return err
		}
		slog.Info("created post", "id", created.ID, "slug", created.Slug, "status", created.Status)
	}
	return nil
}

func samplePosts() []models.PostInput {
	return []models.PostInput{
		{
			Title: "Welcome to Inkwell",
			Content: "This is the first post on a fresh Inkwell install.\n\n" +
				"Posts are written in the admin area or with blogctl, saved as drafts until they are ready, " +
				"and published under a permanent link built from the title.\n\n" +
				"Every read of a published post is counted, and the dashboard shows which posts people open most.",
			Excerpt:  "A short tour of what this blog can do.",
			Status:   models.StatusPublished,
			Tags:     []string{"welcome", "introduction"},
			Featured: true,
		},
		{
			Title: "Writing HTTP Services in Go",
			Content: "The standard library gets a Go service a long way: net/http serves requests, " +
				"context carries deadlines and cancellation, and database/sql pools connections.\n\n" +
				"A router such as chi adds URL parameters and middleware groups without hiding the handler signature.\n\n" +
				"Keep handlers thin: decode, validate, call a repository, encode.",
			Status: models.StatusPublished,
			Tags:   []string{"go", "http", "backend"},
		},
		{
			Title: "Schema Migrations You Can Trust",
			Content: "Every schema change ships as a numbered pair of up and down files.\n\n" +
				"Migrations are embedded in the binary and applied on start, so a deploy never runs against a schema it does not know.\n\n" +
				"Write the down file at the same time as the up file, while the change is still fresh.",
			Excerpt: "Numbered, embedded, reversible: how this blog manages its schema.",
			Status:  models.StatusPublished,
			Tags:    []string{"postgres", "migrations", "backend"},
		},
		{
			Title: "A Command Line for Your Blog",
			Content: "blogctl talks to the same API as the web frontend.\n\n" +
				"Log in once and the session is kept in your config directory. " +
				"List posts as a table, or pass --json and pipe the output wherever it needs to go.",
			Status: models.StatusPublished,
			Tags:   []string{"cli", "tools"},
		},
		{
			Title: "Draft: Full-Text Search",
			Content: "Notes for a future post about adding search.\n\n" +
				"Options to compare: Postgres tsvector columns, a dedicated search engine, or a hosted service.",
			Excerpt: "Comparing ways to add search to a small blog.",
			Status:  models.StatusDraft,
			Tags:    []string{"search", "roadmap"},
		},
	}
}
