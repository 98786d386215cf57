package models

import "time"

// RoutingAction names the transition recorded by a history entry.
type RoutingAction string

const (
	ActionCreated            RoutingAction = "CREATED"
	ActionForwarded          RoutingAction = "FORWARDED"
	ActionApproved           RoutingAction = "APPROVED"
	ActionRejected           RoutingAction = "REJECTED"
	ActionReturnedToPrevious RoutingAction = "RETURNED_TO_PREVIOUS"
	ActionReturnedToHost     RoutingAction = "RETURNED_TO_HOST"
	ActionOnHold             RoutingAction = "ON_HOLD"
	ActionReleasedFromHold   RoutingAction = "RELEASED_FROM_HOLD"
	ActionRecalled           RoutingAction = "RECALLED"
	ActionExtensionRequested RoutingAction = "EXTENSION_REQUESTED"
	ActionExtensionApproved  RoutingAction = "EXTENSION_APPROVED"
	ActionExtensionDenied    RoutingAction = "EXTENSION_DENIED"
	ActionDispatched         RoutingAction = "DISPATCHED"
	ActionClosed             RoutingAction = "CLOSED"
)

// MovesCustody reports whether entries with this action hand the file to a new custodian.
func (a RoutingAction) MovesCustody() bool {
	switch a {
	case ActionCreated, ActionForwarded, ActionApproved, ActionReturnedToPrevious,
		ActionReturnedToHost, ActionRecalled:
		return true
	}
	return false
}

// RoutingHistoryEntry is an immutable audit record of one transition.
type RoutingHistoryEntry struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	FileID       uint          `gorm:"not null;uniqueIndex:idx_history_file_seq" json:"file_id"`
	Sequence     int64         `gorm:"not null;uniqueIndex:idx_history_file_seq" json:"sequence"`
	Action       RoutingAction `gorm:"type:varchar(32);not null" json:"action"`
	ActorID      uint          `gorm:"not null" json:"actor_id"`
	FromUserID   *uint         `json:"from_user_id,omitempty"`
	ToUserID     *uint         `json:"to_user_id,omitempty"`
	ToDivisionID *uint         `json:"to_division_id,omitempty"`
	Remarks      string        `gorm:"type:text" json:"remarks,omitempty"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
}

// TableName pins the history table name.
func (RoutingHistoryEntry) TableName() string {
	return "routing_history"
}
