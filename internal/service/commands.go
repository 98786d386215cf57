package service

import "filetrack/internal/models"

// Command is one routing transition. The set is closed: only types in this package implement it.
type Command interface {
	Action() models.RoutingAction
	expectedVersion() int64
	apply(t *transition) error
}

// deskTargeted is implemented by commands that may place the file on a desk,
// so the department's capacity can be locked alongside the file.
type deskTargeted interface {
	targetDesk() *uint
	autoDesk() bool
}

// custodyChanging is implemented by commands that move, decide, pause or recall a file.
// They must carry the version the caller acted on.
type custodyChanging interface {
	changesCustody()
}

// Precondition carries the optimistic check against the caller's view of the file.
// It is mandatory for custody-changing commands; for extension commands zero skips it.
type Precondition struct {
	ExpectedVersion int64 `json:"expected_version,omitempty"`
}

func (p Precondition) expectedVersion() int64 { return p.ExpectedVersion }

// ExpectVersion sets the version when the request body did not carry one.
func (p *Precondition) ExpectVersion(v int64) {
	if p.ExpectedVersion == 0 {
		p.ExpectedVersion = v
	}
}

// RequiresVersion reports whether cmd must name the version it was issued against.
func RequiresVersion(cmd Command) bool {
	_, ok := cmd.(custodyChanging)
	return ok
}

// CreateFileInput describes a new file.
type CreateFileInput struct {
	FileNumber       string                  `json:"file_number"`
	Subject          string                  `json:"subject"`
	Priority         models.Priority         `json:"priority"`
	PriorityCategory models.PriorityCategory `json:"priority_category"`
}

// ForwardCmd hands the file to a new division and officer.
type ForwardCmd struct {
	Precondition
	TargetDivisionID uint                     `json:"target_division_id"`
	TargetUserID     uint                     `json:"target_user_id"`
	DeskID           *uint                    `json:"desk_id,omitempty"`
	AutoDesk         bool                     `json:"auto_desk,omitempty"`
	Reclassify       *models.PriorityCategory `json:"reclassify,omitempty"`
	Remarks          string                   `json:"remarks,omitempty"`
}

func (ForwardCmd) Action() models.RoutingAction { return models.ActionForwarded }
func (ForwardCmd) changesCustody() {}
func (c ForwardCmd) targetDesk() *uint { return c.DeskID }
func (c ForwardCmd) autoDesk() bool { return c.AutoDesk && c.DeskID == nil }

// ApproveCmd approves the file. With a next stage it moves on like a forward;
// without one the file becomes APPROVED.
type ApproveCmd struct {
	Precondition
	NextDivisionID *uint  `json:"next_division_id,omitempty"`
	NextUserID     *uint  `json:"next_user_id,omitempty"`
	DeskID         *uint  `json:"desk_id,omitempty"`
	Remarks        string `json:"remarks,omitempty"`
}

func (ApproveCmd) Action() models.RoutingAction { return models.ActionApproved }
func (ApproveCmd) changesCustody() {}
func (c ApproveCmd) targetDesk() *uint { return c.DeskID }
func (ApproveCmd) autoDesk() bool { return false }

// RejectCmd closes the file as REJECTED. Remarks are mandatory.
type RejectCmd struct {
	Precondition
	Remarks string `json:"remarks"`
}

func (RejectCmd) Action() models.RoutingAction { return models.ActionRejected }
func (RejectCmd) changesCustody() {}

// ReturnToPreviousCmd sends the file back to the custodian before the current one.
type ReturnToPreviousCmd struct {
	Precondition
	Remarks string `json:"remarks,omitempty"`
}

func (ReturnToPreviousCmd) Action() models.RoutingAction { return models.ActionReturnedToPrevious }
func (ReturnToPreviousCmd) changesCustody() {}

// ReturnToHostCmd sends the file back to its creator.
type ReturnToHostCmd struct {
	Precondition
	Remarks string `json:"remarks,omitempty"`
}

func (ReturnToHostCmd) Action() models.RoutingAction { return models.ActionReturnedToHost }
func (ReturnToHostCmd) changesCustody() {}

// HoldCmd pauses the SLA clock.
type HoldCmd struct {
	Precondition
	Reason string `json:"reason"`
}

func (HoldCmd) Action() models.RoutingAction { return models.ActionOnHold }
func (HoldCmd) changesCustody() {}

// ReleaseCmd resumes the SLA clock where it stopped.
type ReleaseCmd struct {
	Precondition
	Remarks string `json:"remarks,omitempty"`
}

func (ReleaseCmd) Action() models.RoutingAction { return models.ActionReleasedFromHold }
func (ReleaseCmd) changesCustody() {}

// RecallDestination selects where a recalled file goes.
type RecallDestination string

const (
	RecallToAdminDesk  RecallDestination = "ADMIN_DESK"
	RecallToOriginator RecallDestination = "ORIGINATOR"
	RecallToNextStage  RecallDestination = "NEXT_STAGE"
)

// RecallCmd is the super-administrator override that pulls a file regardless of custody.
type RecallCmd struct {
	Precondition
	Destination      RecallDestination `json:"destination"`
	TargetDivisionID uint              `json:"target_division_id,omitempty"`
	TargetUserID     uint              `json:"target_user_id,omitempty"`
	Remarks          string            `json:"remarks"`
}

func (RecallCmd) Action() models.RoutingAction { return models.ActionRecalled }
func (RecallCmd) changesCustody() {}

// RequestExtensionCmd asks for more time on the current allotment.
type RequestExtensionCmd struct {
	Precondition
	AdditionalDays int    `json:"additional_days"`
	Reason         string `json:"reason"`
}

func (RequestExtensionCmd) Action() models.RoutingAction { return models.ActionExtensionRequested }

// ApproveExtensionCmd advances an open extension request by one stage.
type ApproveExtensionCmd struct {
	Precondition
	ExtensionID uint   `json:"extension_id"`
	Remarks     string `json:"remarks,omitempty"`
}

func (ApproveExtensionCmd) Action() models.RoutingAction { return models.ActionExtensionApproved }

// DenyExtensionCmd closes an open extension request without touching the timer.
type DenyExtensionCmd struct {
	Precondition
	ExtensionID uint   `json:"extension_id"`
	Remarks     string `json:"remarks,omitempty"`
}

func (DenyExtensionCmd) Action() models.RoutingAction { return models.ActionExtensionDenied }
