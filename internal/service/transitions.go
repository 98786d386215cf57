package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"filetrack/internal/models"
	"filetrack/internal/notifications"
	"filetrack/internal/repository"
)

const secondsPerDay = 86400

// transition is the working state of one command inside its transaction.
type transition struct {
	ctx    context.Context
	svc    *RoutingService
	tx     repository.Store
	file   *models.File
	actor  models.Actor
	now    time.Time
	entry  models.RoutingHistoryEntry
	events []notifications.Event
}

func (t *transition) requireOpen() error {
	if t.file.Status.Terminal() {
		return models.NewConflictError(fmt.Sprintf("file %s is already %s", t.file.FileNumber, strings.ToLower(string(t.file.Status))))
	}
	return nil
}

func (t *transition) requireNotHeld() error {
	if t.file.IsOnHold {
		return models.NewConflictError(fmt.Sprintf("file %s is on hold; release it first", t.file.FileNumber))
	}
	return nil
}

func (t *transition) requireCustodian(verb string) error {
	if !t.file.IsCustodian(t.actor.ActorID) {
		return models.NewForbiddenError(fmt.Sprintf("only the current custodian can %s this file", verb))
	}
	return nil
}

func (t *transition) requireCustodianOrAdmin(verb string) error {
	if t.file.IsCustodian(t.actor.ActorID) || t.actor.AdministersDepartment(t.file.DepartmentID) {
		return nil
	}
	return models.NewForbiddenError(fmt.Sprintf("only the current custodian or a department administrator can %s this file", verb))
}

func (t *transition) requireDecider(verb string) error {
	if err := t.requireCustodian(verb); err != nil {
		return err
	}
	if !t.actor.CanDecide() {
		return models.NewForbiddenError(fmt.Sprintf("your role cannot %s files", verb))
	}
	return nil
}

// resolveTarget loads a destination division and officer and checks they belong to the file's department.
func (t *transition) resolveTarget(divisionID, userID uint) (*models.Division, *models.User, error) {
	if divisionID == 0 || userID == 0 {
		return nil, nil, models.NewValidationError("target division and target user are required")
	}
	div, err := t.tx.Directory().GetDivision(t.ctx, divisionID)
	if err != nil {
		return nil, nil, err
	}
	user, err := t.tx.Directory().GetUser(t.ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if div.DepartmentID != t.file.DepartmentID || user.DepartmentID != t.file.DepartmentID {
		return nil, nil, models.NewValidationError("target must belong to the file's department")
	}
	if user.DivisionID != div.ID {
		return nil, nil, models.NewValidationError(fmt.Sprintf("user %d does not belong to division %d", user.ID, div.ID))
	}
	if !user.IsActive {
		return nil, nil, models.NewValidationError(fmt.Sprintf("user %d is inactive", user.ID))
	}
	return div, user, nil
}

// placeOnDesk sets the file's desk. An explicit desk is capacity checked; autoDesk picks or
// provisions one in the division when the policy allows it; otherwise the desk is cleared.
func (t *transition) placeOnDesk(deskID *uint, autoDesk bool, divisionID uint) error {
	switch {
	case deskID != nil:
		if err := t.svc.desks.reserve(t.ctx, t.tx, *deskID, t.file); err != nil {
			return err
		}
		id := *deskID
		t.file.DeskID = &id
	case autoDesk && t.svc.flags.AutoDeskProvisioning(t.file.DepartmentID):
		desk, _, err := t.svc.desks.checkAndAutoCreate(t.ctx, t.tx, t.file.DepartmentID, &divisionID, t.file.ID)
		if err != nil {
			return err
		}
		t.file.DeskID = &desk.ID
	default:
		t.file.DeskID = nil
	}
	return nil
}

// moveCustody hands the file over and restarts its clock.
func (t *transition) moveCustody(userID, divisionID uint) {
	t.entry.FromUserID = uintPtr(t.file.AssignedToID)
	t.entry.ToUserID = uintPtr(userID)
	t.entry.ToDivisionID = uintPtr(divisionID)

	t.file.AssignedToID = userID
	t.file.CurrentDivisionID = divisionID
	t.resetClock()
}

func (t *transition) resetClock() {
	t.file.DeskArrivalTime = t.now
	t.file.ClearRedList()
	refreshTimerCache(t.file, t.now)
}

func (t *transition) notify(kind notifications.Kind, message string, recipients ...uint) {
	t.events = append(t.events, notifications.Event{
		Kind:       kind,
		FileID:     t.file.ID,
		FileNumber: t.file.FileNumber,
		Action:     string(t.entry.Action),
		ActorID:    t.actor.ActorID,
		Message:    message,
		At:         t.now,
		Recipients: recipients,
	})
}

func requireText(value, field string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", models.NewValidationError(field + " is required")
	}
	return v, nil
}

func (c ForwardCmd) apply(t *transition) error {
	if err := t.requireCustodianOrAdmin("forward"); err != nil {
		return err
	}
	if err := t.requireOpen(); err != nil {
		return err
	}
	if err := t.requireNotHeld(); err != nil {
		return err
	}
	div, user, err := t.resolveTarget(c.TargetDivisionID, c.TargetUserID)
	if err != nil {
		return err
	}
	if c.Reclassify != nil {
		category, err := models.ParsePriorityCategory(string(*c.Reclassify))
		if err != nil {
			return err
		}
		allotted, err := t.svc.policy.AllotmentFor(category)
		if err != nil {
			return err
		}
		t.file.PriorityCategory = category
		t.file.AllottedTime = &allotted
	}
	if err := t.placeOnDesk(c.DeskID, c.AutoDesk, div.ID); err != nil {
		return err
	}

	if t.file.Status == models.FileStatusPending || t.file.Status == models.FileStatusRecalled {
		t.file.Status = models.FileStatusInProgress
	}
	t.moveCustody(user.ID, div.ID)
	t.entry.Remarks = strings.TrimSpace(c.Remarks)
	t.notify(notifications.KindAssigned, fmt.Sprintf("File %s has been forwarded to you", t.file.FileNumber), user.ID)
	return nil
}

func (c ApproveCmd) apply(t *transition) error {
	if err := t.requireDecider("approve"); err != nil {
		return err
	}
	if err := t.requireOpen(); err != nil {
		return err
	}
	if err := t.requireNotHeld(); err != nil {
		return err
	}
	t.entry.Remarks = strings.TrimSpace(c.Remarks)

	if c.NextDivisionID == nil && c.NextUserID == nil {
		t.file.Status = models.FileStatusApproved
		t.file.ClearRedList()
		t.notify(notifications.KindDecided, fmt.Sprintf("File %s has been approved", t.file.FileNumber), t.file.CreatedByID)
		return nil
	}
	if c.NextDivisionID == nil || c.NextUserID == nil {
		return models.NewValidationError("next stage needs both a division and a user")
	}

	div, user, err := t.resolveTarget(*c.NextDivisionID, *c.NextUserID)
	if err != nil {
		return err
	}
	if err := t.placeOnDesk(c.DeskID, false, div.ID); err != nil {
		return err
	}
	if t.file.Status == models.FileStatusPending || t.file.Status == models.FileStatusRecalled {
		t.file.Status = models.FileStatusInProgress
	}
	t.moveCustody(user.ID, div.ID)
	t.notify(notifications.KindAssigned, fmt.Sprintf("File %s was approved and forwarded to you", t.file.FileNumber), user.ID)
	return nil
}

func (c RejectCmd) apply(t *transition) error {
	if err := t.requireDecider("reject"); err != nil {
		return err
	}
	remarks, err := requireText(c.Remarks, "rejection remarks")
	if err != nil {
		return err
	}
	if err := t.requireOpen(); err != nil {
		return err
	}
	if err := t.requireNotHeld(); err != nil {
		return err
	}

	t.file.Status = models.FileStatusRejected
	t.file.ClearRedList()
	t.entry.Remarks = remarks
	t.notify(notifications.KindDecided, fmt.Sprintf("File %s has been rejected: %s", t.file.FileNumber, remarks), t.file.CreatedByID)
	return nil
}

func (c ReturnToPreviousCmd) apply(t *transition) error {
	if err := t.requireCustodianOrAdmin("return"); err != nil {
		return err
	}
	if err := t.requireOpen(); err != nil {
		return err
	}
	if err := t.requireNotHeld(); err != nil {
		return err
	}
	history, err := t.tx.History().ListByFile(t.ctx, t.file.ID)
	if err != nil {
		return err
	}
	prev, ok := previousCustodian(history)
	if !ok {
		return models.NewConflictError(fmt.Sprintf("file %s has no previous custodian to return to", t.file.FileNumber))
	}

	t.file.DeskID = nil
	t.moveCustody(prev.UserID, prev.DivisionID)
	t.entry.Remarks = strings.TrimSpace(c.Remarks)
	t.notify(notifications.KindAssigned, fmt.Sprintf("File %s has been returned to you", t.file.FileNumber), prev.UserID)
	return nil
}

func (c ReturnToHostCmd) apply(t *transition) error {
	if err := t.requireCustodianOrAdmin("return"); err != nil {
		return err
	}
	if err := t.requireOpen(); err != nil {
		return err
	}
	if err := t.requireNotHeld(); err != nil {
		return err
	}
	if t.file.AssignedToID == t.file.CreatedByID && t.file.CurrentDivisionID == t.file.OriginDivisionID {
		return models.NewConflictError(fmt.Sprintf("file %s is already with its originator", t.file.FileNumber))
	}

	t.file.DeskID = nil
	t.moveCustody(t.file.CreatedByID, t.file.OriginDivisionID)
	t.entry.Remarks = strings.TrimSpace(c.Remarks)
	t.notify(notifications.KindAssigned, fmt.Sprintf("File %s has been returned to you", t.file.FileNumber), t.file.CreatedByID)
	return nil
}

func (c HoldCmd) apply(t *transition) error {
	if err := t.requireCustodianOrAdmin("hold"); err != nil {
		return err
	}
	reason, err := requireText(c.Reason, "hold reason")
	if err != nil {
		return err
	}
	if err := t.requireOpen(); err != nil {
		return err
	}
	if t.file.IsOnHold {
		return models.NewConflictError(fmt.Sprintf("file %s is already on hold", t.file.FileNumber))
	}

	// Capture the clock before the status flips so the frozen value reflects the running timer.
	refreshTimerCache(t.file, t.now)
	heldAt := t.now
	t.file.StatusBeforeHold = t.file.Status
	t.file.Status = models.FileStatusOnHold
	t.file.IsOnHold = true
	t.file.HoldReason = reason
	t.file.HeldAt = &heldAt
	t.entry.Remarks = reason
	t.notify(notifications.KindHeld, fmt.Sprintf("File %s was put on hold: %s", t.file.FileNumber, reason), t.file.AssignedToID)
	return nil
}

func (c ReleaseCmd) apply(t *transition) error {
	if err := t.requireCustodianOrAdmin("release"); err != nil {
		return err
	}
	if !t.file.IsOnHold {
		return models.NewConflictError(fmt.Sprintf("file %s is not on hold", t.file.FileNumber))
	}

	if t.file.HeldAt != nil {
		if held := t.now.Sub(*t.file.HeldAt); held > 0 {
			t.file.DeskArrivalTime = t.file.DeskArrivalTime.Add(held)
		}
	}
	restored := t.file.StatusBeforeHold
	if restored == "" || restored == models.FileStatusOnHold {
		restored = models.FileStatusInProgress
	}
	t.file.Status = restored
	t.file.IsOnHold = false
	t.file.HoldReason = ""
	t.file.HeldAt = nil
	t.file.StatusBeforeHold = ""
	t.file.ClearRedList()
	refreshTimerCache(t.file, t.now)
	t.entry.Remarks = strings.TrimSpace(c.Remarks)
	t.notify(notifications.KindReleased, fmt.Sprintf("File %s was released from hold", t.file.FileNumber), t.file.AssignedToID)
	return nil
}

func (c RecallCmd) apply(t *transition) error {
	if !t.actor.IsSuperAdmin() {
		return models.NewForbiddenError("only a super administrator can recall files")
	}
	remarks, err := requireText(c.Remarks, "recall remarks")
	if err != nil {
		return err
	}
	if t.file.Status.Terminal() && !t.svc.flags.RecallTerminalAllowed(t.file.DepartmentID) {
		return models.NewConflictError(fmt.Sprintf(
			"file %s is already %s and recall of closed files is disabled", t.file.FileNumber, strings.ToLower(string(t.file.Status))))
	}

	var userID, divisionID uint
	switch c.Destination {
	case RecallToAdminDesk:
		if t.actor.DivisionID == 0 {
			return models.NewValidationError("administrator has no holding division")
		}
		userID, divisionID = t.actor.ActorID, t.actor.DivisionID
	case RecallToOriginator:
		userID, divisionID = t.file.CreatedByID, t.file.OriginDivisionID
	case RecallToNextStage:
		div, user, err := t.resolveTarget(c.TargetDivisionID, c.TargetUserID)
		if err != nil {
			return err
		}
		userID, divisionID = user.ID, div.ID
	default:
		return models.NewValidationError(fmt.Sprintf("invalid recall destination %q", c.Destination))
	}

	previous := t.file.AssignedToID
	t.file.Status = models.FileStatusRecalled
	t.file.IsOnHold = false
	t.file.HoldReason = ""
	t.file.HeldAt = nil
	t.file.StatusBeforeHold = ""
	t.file.DeskID = nil
	t.moveCustody(userID, divisionID)
	t.entry.Remarks = remarks
	t.notify(notifications.KindRecalled, fmt.Sprintf("File %s was recalled: %s", t.file.FileNumber, remarks), userID, previous)
	return nil
}

func (c RequestExtensionCmd) apply(t *transition) error {
	if err := t.requireCustodian("request an extension on"); err != nil {
		return err
	}
	if c.AdditionalDays <= 0 {
		return models.NewValidationError("additional days must be positive")
	}
	reason, err := requireText(c.Reason, "extension reason")
	if err != nil {
		return err
	}
	if err := t.requireOpen(); err != nil {
		return err
	}
	open, err := t.tx.Extensions().OpenForFile(t.ctx, t.file.ID)
	if err != nil {
		return err
	}
	if open != nil {
		return models.NewConflictError(fmt.Sprintf("file %s already has an open extension request", t.file.FileNumber))
	}

	req := &models.ExtensionRequest{
		FileID:         t.file.ID,
		RequestedByID:  t.actor.ActorID,
		AdditionalDays: c.AdditionalDays,
		Reason:         reason,
		Status:         models.ExtensionRequested,
	}
	if err := t.tx.Extensions().Create(t.ctx, req); err != nil {
		return err
	}
	t.entry.Remarks = fmt.Sprintf("%d day(s): %s", c.AdditionalDays, reason)
	t.notify(notifications.KindExtensionRequested,
		fmt.Sprintf("An extension of %d day(s) was requested on file %s", c.AdditionalDays, t.file.FileNumber),
		t.file.CreatedByID)
	return nil
}

// openExtension loads an undecided extension request belonging to the file.
func (t *transition) openExtension(id uint) (*models.ExtensionRequest, error) {
	if id == 0 {
		return nil, models.NewValidationError("extension request id is required")
	}
	req, err := t.tx.Extensions().GetByID(t.ctx, id)
	if err != nil {
		return nil, err
	}
	if req.FileID != t.file.ID {
		return nil, models.NewNotFoundError("ExtensionRequest", id)
	}
	if !req.Status.Open() {
		return nil, models.NewConflictError(fmt.Sprintf("extension request %d is already %s", id, strings.ToLower(string(req.Status))))
	}
	return req, nil
}

func (c ApproveExtensionCmd) apply(t *transition) error {
	if err := t.requireOpen(); err != nil {
		return err
	}
	req, err := t.openExtension(c.ExtensionID)
	if err != nil {
		return err
	}

	now := t.now
	remarks := strings.TrimSpace(c.Remarks)
	switch req.Status {
	case models.ExtensionRequested:
		if t.actor.ActorID != t.file.CreatedByID {
			return models.NewForbiddenError("only the file's originator can approve this extension request")
		}
		req.OriginatorDecisionByID = uintPtr(t.actor.ActorID)
		req.OriginatorDecidedAt = &now
		if t.svc.opts.ExtensionRequireSuperAdmin {
			req.Status = models.ExtensionOriginatorApproved
			t.entry.Remarks = joinRemarks("originator approved", remarks)
		} else {
			t.confirmExtension(req)
			t.entry.Remarks = joinRemarks("extension confirmed", remarks)
		}
	case models.ExtensionOriginatorApproved:
		if !t.actor.IsSuperAdmin() {
			return models.NewForbiddenError("only a super administrator can confirm this extension request")
		}
		t.confirmExtension(req)
		t.entry.Remarks = joinRemarks("extension confirmed", remarks)
	}

	req.DecisionRemarks = remarks
	if err := t.tx.Extensions().Save(t.ctx, req); err != nil {
		return err
	}
	t.notify(notifications.KindExtensionDecided,
		fmt.Sprintf("Extension request on file %s is now %s", t.file.FileNumber, strings.ToLower(string(req.Status))),
		req.RequestedByID)
	return nil
}

// confirmExtension grows the allotment and, when configured, restarts the clock.
func (t *transition) confirmExtension(req *models.ExtensionRequest) {
	now := t.now
	req.Status = models.ExtensionConfirmed
	req.ConfirmedByID = uintPtr(t.actor.ActorID)
	req.ConfirmedAt = &now

	extra := int64(req.AdditionalDays) * secondsPerDay
	allotted := extra
	if t.file.AllottedTime != nil {
		allotted += *t.file.AllottedTime
	}
	t.file.AllottedTime = &allotted

	if t.file.IsOnHold {
		remaining := extra
		switch {
		case t.svc.opts.ExtensionResetClock:
			t.file.DeskArrivalTime = now
			t.file.HeldAt = &now
			remaining = allotted
		case t.file.TimeRemaining != nil:
			remaining += *t.file.TimeRemaining
		}
		freezeTimerCache(t.file, remaining)
	} else {
		if t.svc.opts.ExtensionResetClock {
			t.file.DeskArrivalTime = now
		}
		refreshTimerCache(t.file, now)
	}

	if t.file.TimeRemaining != nil && *t.file.TimeRemaining > 0 {
		t.file.ClearRedList()
	}
}

func (c DenyExtensionCmd) apply(t *transition) error {
	if err := t.requireOpen(); err != nil {
		return err
	}
	req, err := t.openExtension(c.ExtensionID)
	if err != nil {
		return err
	}

	now := t.now
	switch req.Status {
	case models.ExtensionRequested:
		isOriginator := t.actor.ActorID == t.file.CreatedByID
		if !isOriginator && !t.actor.IsSuperAdmin() {
			return models.NewForbiddenError("only the file's originator or a super administrator can deny this extension request")
		}
		if isOriginator {
			req.OriginatorDecisionByID = uintPtr(t.actor.ActorID)
			req.OriginatorDecidedAt = &now
		}
	case models.ExtensionOriginatorApproved:
		if !t.actor.IsSuperAdmin() {
			return models.NewForbiddenError("only a super administrator can deny a confirmed-by-originator extension request")
		}
	}

	remarks := strings.TrimSpace(c.Remarks)
	req.Status = models.ExtensionDenied
	req.DecisionRemarks = remarks
	if err := t.tx.Extensions().Save(t.ctx, req); err != nil {
		return err
	}
	t.entry.Remarks = joinRemarks("extension denied", remarks)
	t.notify(notifications.KindExtensionDecided,
		fmt.Sprintf("Extension request on file %s was denied", t.file.FileNumber), req.RequestedByID)
	return nil
}

func joinRemarks(prefix, remarks string) string {
	if remarks == "" {
		return prefix
	}
	return prefix + ": " + remarks
}
