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

	"github.com/crucial707/inkwell/internal/cache"
	"github.com/crucial707/inkwell/internal/config"
	"github.com/crucial707/inkwell/internal/db"
	"github.com/crucial707/inkwell/internal/handlers"
	"github.com/crucial707/inkwell/internal/logging"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	database, err := db.Connect(ctx, cfg.DSN(), cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL()); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	var listCache handlers.ListCache
	if cfg.RedisAddr != "" {
		rc := cache.NewRedisClient(cfg)
		if err := rc.Ping(ctx); err != nil {
			slog.Warn("redis unreachable, list cache disabled", "addr", cfg.RedisAddr, "error", err)
			rc.Close()
		} else {
			listCache = rc
			defer rc.Close()
			slog.Info("list cache enabled", "addr", cfg.RedisAddr, "ttl_seconds", cfg.CacheTTLSeconds)
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(database, cfg, listCache),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		tls := cfg.TLSCertFile != ""
		slog.Info("starting server", "port", cfg.Port, "tls", tls, "env", cfg.Env)
		var err error
		if tls {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
