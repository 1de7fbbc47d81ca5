package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/crucial707/inkwell/internal/auth"
	"github.com/crucial707/inkwell/internal/config"
	"github.com/crucial707/inkwell/internal/handlers"
	"github.com/crucial707/inkwell/internal/middleware"
	"github.com/crucial707/inkwell/internal/models"
	"github.com/crucial707/inkwell/internal/repo"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRouter wires every route. listCache may be nil.
func newRouter(db *sql.DB, cfg config.Config, listCache handlers.ListCache) http.Handler {
	userRepo := repo.NewUserRepo(db)
	issuer := auth.NewIssuer([]byte(cfg.JWTSecret), tokenTTL(cfg))

	authH := &handlers.AuthHandler{UserRepo: userRepo, Issuer: issuer}
	postH := &handlers.PostHandler{
		Posts: repo.NewPostRepo(db),
		Audit: repo.NewAuditRepo(db),
		Cache: listCache,
	}
	auditH := &handlers.AuditHandler{Repo: repo.NewAuditRepo(db)}

	authn := middleware.Authenticate(issuer, userRepo)
	limiter := middleware.AuthRateLimiter()
	body := middleware.MaxBytes(middleware.DefaultMaxBodyBytes)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(cfg.TLSCertFile != ""))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		handlers.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			handlers.JSONError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		handlers.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.JSONError(w, "Route not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	routes := func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(limiter.Middleware, body).Post("/register", authH.Register)
			r.With(limiter.Middleware, body).Post("/login", authH.Login)
			r.With(authn).Get("/me", authH.Me)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postH.ListPublished)

			r.Group(func(r chi.Router) {
				r.Use(authn)
				r.With(middleware.Require(models.PermViewDrafts)).Get("/admin/all", postH.ListAdmin)
				r.With(middleware.Require(models.PermViewDrafts)).Get("/admin/{id}", postH.GetAdminByID)
				r.With(middleware.Require(models.PermWritePosts), body).Post("/", postH.Create)
				r.With(middleware.Require(models.PermWritePosts), body).Put("/{id:[0-9]+}", postH.Update)
				r.With(middleware.Require(models.PermDeletePosts)).Delete("/{id:[0-9]+}", postH.Delete)
			})

			r.Get("/{slug}", postH.GetBySlug)
		})

		r.With(authn, middleware.Require(models.PermViewAudit)).Get("/audit", auditH.ListAudit)
	}

	routes(r)
	r.Route("/api", routes)

	return r
}

func tokenTTL(cfg config.Config) time.Duration {
	hours := cfg.JWTExpireHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}
