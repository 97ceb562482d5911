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

	"github.com/nekogravitycat/blog-backend/internal/app"
	"github.com/nekogravitycat/blog-backend/internal/config"
	"github.com/nekogravitycat/blog-backend/internal/db"
	"github.com/nekogravitycat/blog-backend/internal/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		// No configured logger yet; fall back to JSON on stderr.
		boot := logger.New(logger.Options{Format: logger.FormatJSON, Writer: os.Stderr})
		logger.Fatal(ctx, boot, "failed to load config", "error", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logger.LevelInfo
	}
	log := logger.Setup(logger.Options{
		Level:       level,
		Format:      cfg.LogFormat,
		Production:  cfg.IsProduction(),
		ErrorWriter: os.Stderr,
	})
	defer logger.RecoverFatal(log)

	log.Info("starting server", "env", cfg.AppEnv, "addr", cfg.HTTPAddr, "log_level", logger.LevelName(level))

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, cfg.DBDSN, log); err != nil {
			logger.Fatal(ctx, log, "failed to migrate database", "error", err)
		}
	}

	// Connect DB
	pool, err := db.NewPool(ctx, cfg.DBDSN, cfg.DBMaxConns)
	if err != nil {
		logger.Fatal(ctx, log, "failed to connect to db", "error", err)
	}
	defer pool.Close()

	container, err := app.NewContainer(ctx, cfg, log, pool)
	if err != nil {
		logger.Fatal(ctx, log, "failed to initialize application", "error", err)
	}

	if container.Scheduler != nil {
		container.Scheduler.Start()
	}

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
	}

	// Run server in separate goroutine
	serverErr := make(chan error, 1)
	logger.Go(log, func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	})

	// Wait for Ctrl+C or a listener failure
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		log.Error("server error", "error", err)
	}

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	if container.Scheduler != nil {
		if err := container.Scheduler.Stop(shutdownCtx); err != nil {
			log.Error("scheduler forced to stop", "error", err)
		}
	}

	log.Info("server exited gracefully")
}
