package models

import "time"

// Desk is a capacity-bounded work queue inside a department.
type Desk struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:64;not null;uniqueIndex" json:"name"`
	DepartmentID   uint      `gorm:"not null;index" json:"department_id"`
	DivisionID     *uint     `gorm:"index" json:"division_id,omitempty"`
	MaxFilesPerDay int       `gorm:"not null" json:"max_files_per_day"`
	IsAutoCreated  bool      `gorm:"not null;default:false" json:"is_auto_created"`
	IsActive       bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DeskStats is the derived load of a desk.
type DeskStats struct {
	Desk        Desk    `json:"desk"`
	ActiveFiles int64   `json:"active_files"`
	Utilization float64 `json:"utilization"`
}

// Full reports whether the desk cannot take another file.
func (s DeskStats) Full() bool {
	return s.ActiveFiles >= int64(s.Desk.MaxFilesPerDay)
}
