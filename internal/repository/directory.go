package repository

import (
	"context"

	"filetrack/internal/models"

	"gorm.io/gorm"
)

// DirectoryRepository gives read access to departments, divisions and users.
// The Create methods exist for seeding and tests.
type DirectoryRepository interface {
	GetDepartment(ctx context.Context, id uint) (*models.Department, error)
	GetDivision(ctx context.Context, id uint) (*models.Division, error)
	GetUser(ctx context.Context, id uint) (*models.User, error)
	DepartmentAdmins(ctx context.Context, departmentID uint) ([]models.User, error)
	CreateDepartment(ctx context.Context, dept *models.Department) error
	CreateDivision(ctx context.Context, div *models.Division) error
	CreateUser(ctx context.Context, user *models.User) error
}

type directoryRepository struct {
	db *gorm.DB
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *gorm.DB) DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) GetDepartment(ctx context.Context, id uint) (*models.Department, error) {
	var dept models.Department
	if err := r.db.WithContext(ctx).First(&dept, id).Error; err != nil {
		return nil, mapError(err, "Department", id)
	}
	return &dept, nil
}

func (r *directoryRepository) GetDivision(ctx context.Context, id uint) (*models.Division, error) {
	var div models.Division
	if err := r.db.WithContext(ctx).First(&div, id).Error; err != nil {
		return nil, mapError(err, "Division", id)
	}
	return &div, nil
}

func (r *directoryRepository) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, mapError(err, "User", id)
	}
	return &user, nil
}

func (r *directoryRepository) DepartmentAdmins(ctx context.Context, departmentID uint) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("department_id = ? AND role = ? AND is_active = ?", departmentID, models.RoleDepartmentAdmin, true).
		Order("id").
		Find(&users).Error; err != nil {
		return nil, mapError(err, "Department", departmentID)
	}
	return users, nil
}

func (r *directoryRepository) CreateDepartment(ctx context.Context, dept *models.Department) error {
	return mapError(r.db.WithContext(ctx).Create(dept).Error, "Department", dept.Code)
}

func (r *directoryRepository) CreateDivision(ctx context.Context, div *models.Division) error {
	return mapError(r.db.WithContext(ctx).Create(div).Error, "Division", div.Name)
}

func (r *directoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	return mapError(r.db.WithContext(ctx).Create(user).Error, "User", user.Email)
}
