package repository

import (
	"context"

	"filetrack/internal/models"
	"filetrack/internal/observability"

	"gorm.io/gorm"
)

// DeskRepository defines the interface for desk data operations
type DeskRepository interface {
	Create(ctx context.Context, desk *models.Desk) error
	GetByID(ctx context.Context, id uint) (*models.Desk, error)
	SetActive(ctx context.Context, id uint, active bool) error
	ListByScope(ctx context.Context, departmentID uint, divisionID *uint, activeOnly bool) ([]models.Desk, error)
	CountByDepartment(ctx context.Context, departmentID uint) (int64, error)
	NameExists(ctx context.Context, name string) (bool, error)
}

type deskRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewDeskRepository creates a new desk repository
func NewDeskRepository(db *gorm.DB) DeskRepository {
	return &deskRepository{db: db, log: observability.NewRepoLogger("desks")}
}

func (r *deskRepository) Create(ctx context.Context, desk *models.Desk) error {
	if err := r.db.WithContext(ctx).Create(desk).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return mapError(err, "Desk", desk.Name)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"desk_id": desk.ID, "name": desk.Name})
	return nil
}

func (r *deskRepository) GetByID(ctx context.Context, id uint) (*models.Desk, error) {
	var desk models.Desk
	if err := r.db.WithContext(ctx).First(&desk, id).Error; err != nil {
		return nil, mapError(err, "Desk", id)
	}
	return &desk, nil
}

func (r *deskRepository) SetActive(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.Desk{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return mapError(result.Error, "Desk", id)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Desk", id)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"desk_id": id, "is_active": active})
	return nil
}

// ListByScope lists desks of a department, optionally narrowed to one division.
func (r *deskRepository) ListByScope(ctx context.Context, departmentID uint, divisionID *uint, activeOnly bool) ([]models.Desk, error) {
	var desks []models.Desk
	q := r.db.WithContext(ctx).Where("department_id = ?", departmentID)
	if divisionID != nil {
		q = q.Where("division_id = ?", *divisionID)
	}
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("id").Find(&desks).Error; err != nil {
		return nil, mapError(err, "Desk", departmentID)
	}
	return desks, nil
}

func (r *deskRepository) CountByDepartment(ctx context.Context, departmentID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Desk{}).
		Where("department_id = ?", departmentID).
		Count(&count).Error; err != nil {
		return 0, mapError(err, "Desk", departmentID)
	}
	return count, nil
}

func (r *deskRepository) NameExists(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Desk{}).
		Where("name = ?", name).
		Count(&count).Error; err != nil {
		return false, mapError(err, "Desk", name)
	}
	return count > 0, nil
}
