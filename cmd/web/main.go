package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crucial707/inkwell/internal/client"
	"github.com/crucial707/inkwell/internal/logging"
	blogmw "github.com/crucial707/inkwell/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultPort = "3000"
	defaultAPI  = "http://localhost:8080"
	envWebPort  = "BLOG_WEB_PORT"
	envAPIURL   = "BLOG_API_URL"
)

func main() {
	logging.Setup(getEnv("LOG_FORMAT", "text"))

	port := getEnv(envWebPort, defaultPort)
	apiBase := getEnv(envAPIURL, defaultAPI)

	a, err := newApp(apiBase, &http.Client{Timeout: client.DefaultTimeout})
	if err != nil {
		slog.Error("load templates", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("web UI listening", "addr", "http://localhost:"+port, "api", apiBase)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}

func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(blogmw.RequestLog)
	r.Use(middleware.Recoverer)

	// Health (no auth, no templates)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	// Public
	r.Get("/", a.home)
	r.Get("/posts", a.postsList)
	r.Get("/posts/{slug}", a.postDetail)
	r.Get("/login", a.loginForm)
	r.Post("/login", a.loginSubmit)
	r.Get("/logout", a.logout)

	// Admin
	r.Route("/admin", func(r chi.Router) {
		r.Use(a.requireAdmin)
		r.Get("/", a.dashboard)
		r.Get("/posts", a.adminPosts)
		r.Get("/posts/new", a.editorNew)
		r.Post("/posts", a.createPost)
		r.Get("/posts/{id}/edit", a.editorEdit)
		r.Post("/posts/{id}/edit", a.updatePost)
		r.Get("/posts/{id}/delete", a.deleteConfirm)
		r.Post("/posts/{id}/delete", a.deletePost)
	})

	return r
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
