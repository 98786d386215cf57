package repository

import (
	"context"
	"errors"
	"time"

	"filetrack/internal/models"
	"filetrack/internal/observability"

	"gorm.io/gorm"
)

// HistoryRepository defines the interface for the append-only routing log
type HistoryRepository interface {
	Append(ctx context.Context, entry *models.RoutingHistoryEntry) error
	ListByFile(ctx context.Context, fileID uint) ([]models.RoutingHistoryEntry, error)
}

type historyRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db, log: observability.NewRepoLogger("routing_history")}
}

// Append assigns the next sequence number for the file and inserts the entry.
// CreatedAt is nudged forward when needed so timestamps increase with the sequence.
func (r *historyRepository) Append(ctx context.Context, entry *models.RoutingHistoryEntry) error {
	var last models.RoutingHistoryEntry
	err := r.db.WithContext(ctx).
		Where("file_id = ?", entry.FileID).
		Order("sequence DESC").
		Limit(1).
		Take(&last).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		entry.Sequence = 1
	case err != nil:
		return mapError(err, "RoutingHistory", entry.FileID)
	default:
		entry.Sequence = last.Sequence + 1
		if !entry.CreatedAt.After(last.CreatedAt) {
			entry.CreatedAt = last.CreatedAt.Add(time.Microsecond)
		}
	}

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.NewConflictError("routing history was appended concurrently")
		}
		return mapError(err, "RoutingHistory", entry.FileID)
	}
	r.log.LogCreate(ctx, map[string]interface{}{
		"file_id":  entry.FileID,
		"sequence": entry.Sequence,
		"action":   entry.Action,
	})
	return nil
}

func (r *historyRepository) ListByFile(ctx context.Context, fileID uint) ([]models.RoutingHistoryEntry, error) {
	var entries []models.RoutingHistoryEntry
	if err := r.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("sequence ASC").
		Find(&entries).Error; err != nil {
		return nil, mapError(err, "RoutingHistory", fileID)
	}
	return entries, nil
}
