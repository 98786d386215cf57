package repository

import (
	"context"

	"filetrack/internal/models"
	"filetrack/internal/observability"

	"gorm.io/gorm"
)

// FileRepository defines the interface for file data operations
type FileRepository interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id uint) (*models.File, error)
	ExistsByNumber(ctx context.Context, fileNumber string) (bool, error)
	Save(ctx context.Context, file *models.File, expectedVersion int64) error
	UpdateTimerCache(ctx context.Context, id uint, version int64, remaining *int64, percentage *int) error
	ListActiveIDs(ctx context.Context) ([]uint, error)
	CountActiveOnDesk(ctx context.Context, deskID uint, excludeFileID uint) (int64, error)
}

// fileRepository implements FileRepository
type fileRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewFileRepository creates a new file repository
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db, log: observability.NewRepoLogger("files")}
}

func (r *fileRepository) Create(ctx context.Context, file *models.File) error {
	if file.Version == 0 {
		file.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return mapError(err, "File", file.FileNumber)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"file_id": file.ID, "file_number": file.FileNumber})
	return nil
}

func (r *fileRepository) GetByID(ctx context.Context, id uint) (*models.File, error) {
	var file models.File
	if err := r.db.WithContext(ctx).First(&file, id).Error; err != nil {
		return nil, mapError(err, "File", id)
	}
	return &file, nil
}

func (r *fileRepository) ExistsByNumber(ctx context.Context, fileNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.File{}).
		Where("file_number = ?", fileNumber).
		Count(&count).Error; err != nil {
		return false, mapError(err, "File", fileNumber)
	}
	return count > 0, nil
}

// Save writes every column of file when the stored version still equals expectedVersion,
// and bumps the version. A missing row or a newer version is reported as a conflict.
func (r *fileRepository) Save(ctx context.Context, file *models.File, expectedVersion int64) error {
	file.Version = expectedVersion + 1
	result := r.db.WithContext(ctx).
		Model(file).
		Where("version = ?", expectedVersion).
		Select("*").
		Omit("ID", "CreatedAt").
		Updates(file)
	if result.Error != nil {
		file.Version = expectedVersion
		r.log.LogError(ctx, result.Error, "update")
		return mapError(result.Error, "File", file.ID)
	}
	if result.RowsAffected == 0 {
		file.Version = expectedVersion
		return models.NewConflictError("file was modified concurrently; reload and retry")
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"file_id": file.ID, "version": file.Version})
	return nil
}

// UpdateTimerCache refreshes the cached timer columns without bumping the version,
// so a sweep never invalidates a caller's view of the file.
func (r *fileRepository) UpdateTimerCache(ctx context.Context, id uint, version int64, remaining *int64, percentage *int) error {
	result := r.db.WithContext(ctx).
		Model(&models.File{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"time_remaining":   remaining,
			"timer_percentage": percentage,
		})
	if result.Error != nil {
		return mapError(result.Error, "File", id)
	}
	if result.RowsAffected == 0 {
		return models.NewConflictError("file was modified concurrently; reload and retry")
	}
	return nil
}

// ListActiveIDs returns files the red-list monitor must evaluate.
func (r *fileRepository) ListActiveIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.File{}).
		Where("status NOT IN ? AND is_on_hold = ? AND allotted_time > 0",
			[]models.FileStatus{models.FileStatusApproved, models.FileStatusRejected}, false).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, mapError(err, "File", "active")
	}
	return ids, nil
}

func (r *fileRepository) CountActiveOnDesk(ctx context.Context, deskID uint, excludeFileID uint) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).
		Model(&models.File{}).
		Where("desk_id = ? AND status IN ?", deskID, models.ActiveStatuses)
	if excludeFileID != 0 {
		q = q.Where("id <> ?", excludeFileID)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, mapError(err, "Desk", deskID)
	}
	return count, nil
}
