// Package bootstrap connects the runtime dependencies shared by every command.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"filetrack/internal/cache"
	"filetrack/internal/config"
	"filetrack/internal/database"
	"filetrack/internal/middleware"
	"filetrack/internal/repository"
	"filetrack/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// DirectoryFixture is a YAML org chart loaded on startup in development when the
	// directory is still empty.
	DirectoryFixture string
}

// InitRuntime connects to DB and Redis and optionally loads a directory fixture.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis may stay nil when unreachable.
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := loadDevFixture(cfg, db, opts.DirectoryFixture); err != nil {
		return nil, nil, fmt.Errorf("failed to load directory fixture: %w", err)
	}

	return db, r, nil
}

func loadDevFixture(cfg *config.Config, db *gorm.DB, path string) error {
	path = strings.TrimSpace(path)
	if path == "" || cfg == nil || cfg.IsProduction() {
		return nil
	}

	var departments int64
	if err := db.Table("departments").Count(&departments).Error; err != nil {
		return err
	}
	if departments > 0 {
		middleware.Logger.Info("directory already populated; fixture skipped", slog.String("fixture", path))
		return nil
	}

	fx, err := seed.LoadDirectoryFile(path)
	if err != nil {
		return err
	}
	dir, err := fx.Apply(context.Background(), repository.NewStore(db))
	if err != nil {
		return err
	}
	middleware.Logger.Info("directory fixture loaded",
		slog.String("fixture", path),
		slog.Int("departments", len(dir.Departments)),
		slog.Int("users", len(dir.Users)),
		slog.Int("desks", len(dir.Desks)),
	)
	return nil
}
