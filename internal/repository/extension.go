package repository

import (
	"context"
	"errors"

	"filetrack/internal/models"
	"filetrack/internal/observability"

	"gorm.io/gorm"
)

// ExtensionRepository defines the interface for extension request data operations
type ExtensionRepository interface {
	Create(ctx context.Context, req *models.ExtensionRequest) error
	GetByID(ctx context.Context, id uint) (*models.ExtensionRequest, error)
	Save(ctx context.Context, req *models.ExtensionRequest) error
	OpenForFile(ctx context.Context, fileID uint) (*models.ExtensionRequest, error)
	ListByFile(ctx context.Context, fileID uint) ([]models.ExtensionRequest, error)
}

type extensionRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewExtensionRepository creates a new extension request repository
func NewExtensionRepository(db *gorm.DB) ExtensionRepository {
	return &extensionRepository{db: db, log: observability.NewRepoLogger("extension_requests")}
}

func (r *extensionRepository) Create(ctx context.Context, req *models.ExtensionRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return mapError(err, "ExtensionRequest", req.FileID)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"extension_id": req.ID, "file_id": req.FileID})
	return nil
}

func (r *extensionRepository) GetByID(ctx context.Context, id uint) (*models.ExtensionRequest, error) {
	var req models.ExtensionRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, mapError(err, "ExtensionRequest", id)
	}
	return &req, nil
}

func (r *extensionRepository) Save(ctx context.Context, req *models.ExtensionRequest) error {
	if err := r.db.WithContext(ctx).Save(req).Error; err != nil {
		r.log.LogError(ctx, err, "update")
		return mapError(err, "ExtensionRequest", req.ID)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"extension_id": req.ID, "status": req.Status})
	return nil
}

// OpenForFile returns the undecided request of a file, or nil when there is none.
func (r *extensionRepository) OpenForFile(ctx context.Context, fileID uint) (*models.ExtensionRequest, error) {
	var req models.ExtensionRequest
	err := r.db.WithContext(ctx).
		Where("file_id = ? AND status IN ?", fileID,
			[]models.ExtensionStatus{models.ExtensionRequested, models.ExtensionOriginatorApproved}).
		Order("id DESC").
		Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "ExtensionRequest", fileID)
	}
	return &req, nil
}

func (r *extensionRepository) ListByFile(ctx context.Context, fileID uint) ([]models.ExtensionRequest, error) {
	var reqs []models.ExtensionRequest
	if err := r.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("id ASC").
		Find(&reqs).Error; err != nil {
		return nil, mapError(err, "ExtensionRequest", fileID)
	}
	return reqs, nil
}
