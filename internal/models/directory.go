package models

import "time"

// Department is the top of the hierarchy. Code feeds generated desk names.
type Department struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:16;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Division belongs to exactly one department.
type Division struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DepartmentID uint      `gorm:"not null;index" json:"department_id"`
	Name         string    `gorm:"size:120;not null" json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// User is an officer known to the directory. Credentials live elsewhere.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:120;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex" json:"email"`
	Role         Role      `gorm:"type:varchar(32);not null;index" json:"role"`
	DepartmentID uint      `gorm:"not null;index" json:"department_id"`
	DivisionID   uint      `gorm:"not null;index" json:"division_id"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
