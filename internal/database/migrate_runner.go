package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"filetrack/internal/middleware"

	"gorm.io/gorm"
)

// MigrationStore records which migrations the routing store has applied.
type MigrationStore interface {
	EnsureLog(ctx context.Context) error
	AppliedMigrations(ctx context.Context) ([]MigrationLog, error)
	// ApplyMigration runs the up script and records it in one transaction.
	ApplyMigration(ctx context.Context, m Migration) error
	// RemoveMigration runs the down script and drops its record in one transaction.
	RemoveMigration(ctx context.Context, m Migration) error
	// MissingTables returns the tables from the list that do not exist.
	MissingTables(ctx context.Context, tables []string) ([]string, error)
}

// MigrationLog is one applied migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255"`
	Checksum  string    `gorm:"size:64"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

type migrationStore struct {
	db *gorm.DB
}

// NewMigrationStore returns a MigrationStore backed by the migration_logs table.
func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &migrationStore{db: db}
}

const ensureMigrationLogSQL = `
CREATE TABLE IF NOT EXISTS migration_logs (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	checksum VARCHAR(64) NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE migration_logs ADD COLUMN IF NOT EXISTS checksum VARCHAR(64) NOT NULL DEFAULT '';`

func (s *migrationStore) EnsureLog(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec(ensureMigrationLogSQL).Error; err != nil {
		return fmt.Errorf("ensure migration_logs: %w", err)
	}
	return nil
}

func (s *migrationStore) AppliedMigrations(ctx context.Context) ([]MigrationLog, error) {
	var logs []MigrationLog
	if err := s.db.WithContext(ctx).Order("version ASC").Find(&logs).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingTableError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	return logs, nil
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}

func (s *migrationStore) ApplyMigration(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("apply migration %s: %w", m.String(), err)
		}
		entry := MigrationLog{Version: m.Version, Name: m.Name, Checksum: m.Checksum}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("record migration %s: %w", m.String(), err)
		}
		return nil
	})
}

func (s *migrationStore) RemoveMigration(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("roll back migration %s: %w", m.String(), err)
		}
		if err := tx.Where("version = ?", m.Version).Delete(&MigrationLog{}).Error; err != nil {
			return fmt.Errorf("remove migration record %s: %w", m.String(), err)
		}
		return nil
	})
}

func (s *migrationStore) MissingTables(ctx context.Context, tables []string) ([]string, error) {
	migrator := s.db.WithContext(ctx).Migrator()
	var missing []string
	for _, table := range tables {
		if !migrator.HasTable(table) {
			missing = append(missing, table)
		}
	}
	return missing, nil
}

// pendingMigrations checks the applied log against the registered migrations and
// returns the ones still to run. It refuses versions it does not know and up
// scripts edited after they were applied.
func pendingMigrations(applied []MigrationLog, registered []Migration) ([]Migration, error) {
	known := make(map[int]Migration, len(registered))
	for _, m := range registered {
		known[m.Version] = m
	}

	var unknown, drifted []string
	done := make(map[int]bool, len(applied))
	for _, entry := range applied {
		done[entry.Version] = true
		m, ok := known[entry.Version]
		switch {
		case !ok:
			unknown = append(unknown, fmt.Sprintf("%06d", entry.Version))
		case entry.Checksum != "" && entry.Checksum != m.Checksum:
			drifted = append(drifted, m.String())
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("migration_logs contains versions unknown to this build: %s", strings.Join(unknown, ", "))
	}
	if len(drifted) > 0 {
		return nil, fmt.Errorf("applied migrations were edited afterwards: %s", strings.Join(drifted, ", "))
	}

	var pending []Migration
	for _, m := range registered {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// RunMigrations applies pending SQL migrations and then checks that every routing
// table exists.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	registered, err := loadMigrations()
	if err != nil {
		return err
	}
	return runMigrations(ctx, NewMigrationStore(db), registered)
}

func runMigrations(ctx context.Context, store MigrationStore, registered []Migration) error {
	if err := store.EnsureLog(ctx); err != nil {
		return err
	}
	applied, err := store.AppliedMigrations(ctx)
	if err != nil {
		return err
	}
	pending, err := pendingMigrations(applied, registered)
	if err != nil {
		return err
	}

	for _, m := range pending {
		middleware.Logger.InfoContext(ctx, "applying migration",
			slog.String("migration", m.String()), slog.Any("tables", m.Tables))
		if err := store.ApplyMigration(ctx, m); err != nil {
			return err
		}
	}

	var tables []string
	for _, m := range registered {
		tables = append(tables, m.Tables...)
	}
	missing, err := store.MissingTables(ctx, tables)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("routing schema incomplete after migrations, missing: %s", strings.Join(missing, ", "))
	}
	middleware.Logger.InfoContext(ctx, "routing schema verified",
		slog.Int("applied", len(applied)+len(pending)), slog.Int("tables", len(tables)))
	return nil
}

// RollbackMigration reverts the most recently applied migration. version must name it.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	registered, err := loadMigrations()
	if err != nil {
		return err
	}
	return rollbackMigration(ctx, NewMigrationStore(db), registered, version)
}

func rollbackMigration(ctx context.Context, store MigrationStore, registered []Migration, version int) error {
	applied, err := store.AppliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return fmt.Errorf("no migrations applied")
	}
	latest := applied[len(applied)-1].Version
	if version != latest {
		return fmt.Errorf("migration %06d is not the latest applied (%06d); roll back in order", version, latest)
	}

	for _, m := range registered {
		if m.Version == version {
			middleware.Logger.InfoContext(ctx, "rolling back migration", slog.String("migration", m.String()))
			return store.RemoveMigration(ctx, m)
		}
	}
	return fmt.Errorf("migration %06d not found in this build", version)
}
