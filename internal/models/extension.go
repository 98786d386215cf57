package models

import "time"

// ExtensionStatus tracks the two-stage approval of a deadline extension.
type ExtensionStatus string

const (
	// ExtensionRequested awaits the originator's decision.
	ExtensionRequested ExtensionStatus = "REQUESTED"
	// ExtensionOriginatorApproved awaits super-administrator confirmation.
	ExtensionOriginatorApproved ExtensionStatus = "ORIGINATOR_APPROVED"
	// ExtensionConfirmed means the allotment has been increased.
	ExtensionConfirmed ExtensionStatus = "CONFIRMED"
	// ExtensionDenied means the timer was left untouched.
	ExtensionDenied ExtensionStatus = "DENIED"
)

// Open reports whether the request still awaits a decision.
func (s ExtensionStatus) Open() bool {
	return s == ExtensionRequested || s == ExtensionOriginatorApproved
}

// ExtensionRequest is a custodian's request for more time on a file.
type ExtensionRequest struct {
	ID                     uint            `gorm:"primaryKey" json:"id"`
	FileID                 uint            `gorm:"not null;index" json:"file_id"`
	RequestedByID          uint            `gorm:"not null" json:"requested_by_id"`
	AdditionalDays         int             `gorm:"not null" json:"additional_days"`
	Reason                 string          `gorm:"type:text;not null" json:"reason"`
	Status                 ExtensionStatus `gorm:"type:varchar(24);not null;index" json:"status"`
	OriginatorDecisionByID *uint           `json:"originator_decision_by_id,omitempty"`
	OriginatorDecidedAt    *time.Time      `json:"originator_decided_at,omitempty"`
	ConfirmedByID          *uint           `json:"confirmed_by_id,omitempty"`
	ConfirmedAt            *time.Time      `json:"confirmed_at,omitempty"`
	DecisionRemarks        string          `gorm:"type:text" json:"decision_remarks,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}
