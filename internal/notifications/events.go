// Package notifications delivers routing events to officers without blocking transitions.
package notifications

import "time"

// Kind classifies a notification.
type Kind string

const (
	KindAssigned           Kind = "file.assigned"
	KindDecided            Kind = "file.decided"
	KindHeld               Kind = "file.held"
	KindReleased           Kind = "file.released"
	KindRecalled           Kind = "file.recalled"
	KindRedListed          Kind = "file.red_listed"
	KindExtensionRequested Kind = "extension.requested"
	KindExtensionDecided   Kind = "extension.decided"
)

// Event is one notification addressed to one or more users.
type Event struct {
	Kind       Kind      `json:"kind"`
	FileID     uint      `json:"file_id"`
	FileNumber string    `json:"file_number"`
	Action     string    `json:"action,omitempty"`
	ActorID    uint      `json:"actor_id,omitempty"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at"`
	Recipients []uint    `json:"-"`
}
