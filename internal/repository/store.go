package repository

import (
	"context"

	"filetrack/internal/models"

	"gorm.io/gorm"
)

// Store groups the repositories used by the routing engine.
// Repositories obtained from the Store passed to WithinTx share that transaction.
type Store interface {
	Files() FileRepository
	History() HistoryRepository
	Desks() DeskRepository
	Extensions() ExtensionRepository
	Directory() DirectoryRepository
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a Store backed by db.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Files() FileRepository           { return NewFileRepository(s.db) }
func (s *gormStore) History() HistoryRepository      { return NewHistoryRepository(s.db) }
func (s *gormStore) Desks() DeskRepository           { return NewDeskRepository(s.db) }
func (s *gormStore) Extensions() ExtensionRepository { return NewExtensionRepository(s.db) }
func (s *gormStore) Directory() DirectoryRepository  { return NewDirectoryRepository(s.db) }

// WithinTx runs fn in a single database transaction. Any error from fn rolls back.
func (s *gormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
	if err != nil && models.ErrorCode(err) == "" {
		return models.NewTransientStoreError(err)
	}
	return err
}
