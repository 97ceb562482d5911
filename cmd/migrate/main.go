// Command migrate applies the embedded database migrations and exits.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nekogravitycat/blog-backend/internal/config"
	"github.com/nekogravitycat/blog-backend/internal/db"
	"github.com/nekogravitycat/blog-backend/internal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Options{Format: logger.FormatJSON, Writer: os.Stderr})
		logger.Fatal(ctx, boot, "failed to load config", "error", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logger.LevelInfo
	}
	log := logger.Setup(logger.Options{Level: level, Format: cfg.LogFormat, Production: cfg.IsProduction()})
	defer logger.RecoverFatal(log)

	if err := db.Migrate(ctx, cfg.DBDSN, log); err != nil {
		logger.Fatal(ctx, log, "migration failed", "error", err)
	}
}
