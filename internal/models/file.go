// Package models defines the persistent entities and shared value types of the routing engine.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the display/sorting ordinal of a file.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// PriorityCategory selects the SLA allotment of a file.
type PriorityCategory string

const (
	CategoryRoutine   PriorityCategory = "ROUTINE"
	CategoryUrgent    PriorityCategory = "URGENT"
	CategoryImmediate PriorityCategory = "IMMEDIATE"
	CategoryProject   PriorityCategory = "PROJECT"
)

// ParsePriorityCategory normalizes raw input into a PriorityCategory.
func ParsePriorityCategory(raw string) (PriorityCategory, error) {
	c := PriorityCategory(strings.ToUpper(strings.TrimSpace(raw)))
	switch c {
	case CategoryRoutine, CategoryUrgent, CategoryImmediate, CategoryProject:
		return c, nil
	}
	return "", NewValidationError(fmt.Sprintf("invalid priority category %q", raw))
}

// FileStatus is the lifecycle state of a file.
type FileStatus string

const (
	FileStatusPending    FileStatus = "PENDING"
	FileStatusInProgress FileStatus = "IN_PROGRESS"
	FileStatusApproved   FileStatus = "APPROVED"
	FileStatusRejected   FileStatus = "REJECTED"
	FileStatusOnHold     FileStatus = "ON_HOLD"
	FileStatusRecalled   FileStatus = "RECALLED"
)

// Terminal reports whether no further routing is allowed from s.
func (s FileStatus) Terminal() bool {
	return s == FileStatusApproved || s == FileStatusRejected
}

// ActiveStatuses are the statuses that count against desk capacity.
var ActiveStatuses = []FileStatus{FileStatusPending, FileStatusInProgress}

// File is a case file moving through the department hierarchy.
//
// TimeRemaining and TimerPercentage are caches written by the red-list monitor and by
// transitions; decisions are always taken from DeskArrivalTime and AllottedTime.
type File struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	FileNumber       string           `gorm:"size:64;not null;uniqueIndex" json:"file_number"`
	Subject          string           `gorm:"size:255" json:"subject"`
	Priority         Priority         `gorm:"type:varchar(16);not null" json:"priority"`
	PriorityCategory PriorityCategory `gorm:"type:varchar(16);not null" json:"priority_category"`
	Status           FileStatus       `gorm:"type:varchar(20);not null;index" json:"status"`

	DepartmentID      uint  `gorm:"not null;index" json:"department_id"`
	OriginDivisionID  uint  `gorm:"not null" json:"origin_division_id"`
	CurrentDivisionID uint  `gorm:"not null;index" json:"current_division_id"`
	AssignedToID      uint  `gorm:"not null;index" json:"assigned_to_id"`
	DeskID            *uint `gorm:"index" json:"desk_id,omitempty"`

	DeskArrivalTime time.Time `gorm:"not null" json:"desk_arrival_time"`
	AllottedTime    *int64    `json:"allotted_time,omitempty"`
	TimeRemaining   *int64    `json:"time_remaining,omitempty"`
	TimerPercentage *int      `json:"timer_percentage,omitempty"`

	IsRedListed      bool       `gorm:"not null;default:false;index" json:"is_red_listed"`
	RedListedAt      *time.Time `json:"red_listed_at,omitempty"`
	IsOnHold         bool       `gorm:"not null;default:false" json:"is_on_hold"`
	HoldReason       string     `gorm:"type:text" json:"hold_reason,omitempty"`
	HeldAt           *time.Time `json:"held_at,omitempty"`
	StatusBeforeHold FileStatus `gorm:"type:varchar(20)" json:"-"`

	CreatedByID uint      `gorm:"not null;index" json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Version int64 `gorm:"not null;default:1" json:"version"`
}

// HasTimer reports whether the file carries an SLA allotment.
func (f *File) HasTimer() bool {
	return f.AllottedTime != nil && *f.AllottedTime > 0
}

// IsCustodian reports whether userID currently holds the file.
func (f *File) IsCustodian(userID uint) bool {
	return f.AssignedToID == userID
}

// ClearRedList drops the escalation overlay.
func (f *File) ClearRedList() {
	f.IsRedListed = false
	f.RedListedAt = nil
}
