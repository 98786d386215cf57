// Package service holds the routing state machine, the desk capacity manager
// and the red-list monitor.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"filetrack/internal/clock"
	"filetrack/internal/featureflags"
	"filetrack/internal/lock"
	"filetrack/internal/models"
	"filetrack/internal/notifications"
	"filetrack/internal/observability"
	"filetrack/internal/repository"
	"filetrack/internal/sla"
	"filetrack/internal/validation"
)

// RoutingOptions tunes the routing engine.
type RoutingOptions struct {
	TransitionTimeout          time.Duration
	ExtensionRequireSuperAdmin bool
	ExtensionResetClock        bool
}

// RoutingService applies routing commands to files.
// Every command runs under the file's lock and inside one transaction that saves the
// file with a version check and appends exactly one history entry.
type RoutingService struct {
	store   repository.Store
	locker  lock.Locker
	clock   clock.Clock
	policy  *sla.Policy
	flags   *featureflags.Manager
	emitter *notifications.Emitter
	desks   *DeskService
	opts    RoutingOptions
}

// NewRoutingService returns a new RoutingService.
func NewRoutingService(
	store repository.Store,
	locker lock.Locker,
	clk clock.Clock,
	policy *sla.Policy,
	flags *featureflags.Manager,
	emitter *notifications.Emitter,
	desks *DeskService,
	opts RoutingOptions,
) *RoutingService {
	if opts.TransitionTimeout <= 0 {
		opts.TransitionTimeout = 10 * time.Second
	}
	return &RoutingService{
		store:   store,
		locker:  locker,
		clock:   clk,
		policy:  policy,
		flags:   flags,
		emitter: emitter,
		desks:   desks,
		opts:    opts,
	}
}

// Create opens a new file in PENDING with the creator as custodian.
func (s *RoutingService) Create(ctx context.Context, actor models.Actor, in CreateFileInput) (*models.File, error) {
	action := string(models.ActionCreated)
	done := observability.TrackTransition(action)
	span, ctx := observability.StartTransitionSpan(ctx, action, 0, actor.ActorID)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, s.opts.TransitionTimeout)
	defer cancel()

	file, err := s.create(ctx, actor, in)
	done(outcome(err))
	span.SetError(err)
	var fileID uint
	if file != nil {
		fileID = file.ID
	}
	observability.LogTransition(ctx, fileID, actor.ActorID, action, err)
	return file, err
}

func (s *RoutingService) create(ctx context.Context, actor models.Actor, in CreateFileInput) (*models.File, error) {
	if !actor.CanCreate() {
		return nil, models.NewForbiddenError("your role cannot create files")
	}
	number := strings.TrimSpace(in.FileNumber)
	if number == "" {
		return nil, models.NewValidationError("file number is required")
	}
	if err := validation.ValidateFileNumber(number); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if !in.Priority.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("invalid priority %q", in.Priority))
	}
	category, err := models.ParsePriorityCategory(string(in.PriorityCategory))
	if err != nil {
		return nil, err
	}
	allotted, err := s.policy.AllotmentFor(category)
	if err != nil {
		return nil, err
	}
	if actor.DivisionID == 0 {
		return nil, models.NewValidationError("creator must belong to a division")
	}

	now := s.clock.Now()
	file := &models.File{
		FileNumber:        number,
		Subject:           strings.TrimSpace(in.Subject),
		Priority:          in.Priority,
		PriorityCategory:  category,
		Status:            models.FileStatusPending,
		DepartmentID:      actor.DepartmentID,
		OriginDivisionID:  actor.DivisionID,
		CurrentDivisionID: actor.DivisionID,
		AssignedToID:      actor.ActorID,
		DeskArrivalTime:   now,
		AllottedTime:      &allotted,
		CreatedByID:       actor.ActorID,
		Version:           1,
	}
	refreshTimerCache(file, now)

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		div, err := tx.Directory().GetDivision(ctx, actor.DivisionID)
		if err != nil {
			return err
		}
		if div.DepartmentID != actor.DepartmentID {
			return models.NewValidationError("creator's division is outside their department")
		}
		exists, err := tx.Files().ExistsByNumber(ctx, number)
		if err != nil {
			return err
		}
		if exists {
			return models.NewValidationError(fmt.Sprintf("file number %s already exists", number))
		}
		if err := tx.Files().Create(ctx, file); err != nil {
			return err
		}
		return tx.History().Append(ctx, &models.RoutingHistoryEntry{
			FileID:       file.ID,
			Action:       models.ActionCreated,
			ActorID:      actor.ActorID,
			ToUserID:     uintPtr(actor.ActorID),
			ToDivisionID: uintPtr(actor.DivisionID),
			CreatedAt:    now,
		})
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Apply validates and applies cmd to the file. On any error nothing is written.
func (s *RoutingService) Apply(ctx context.Context, fileID uint, actor models.Actor, cmd Command) (*models.File, error) {
	action := string(cmd.Action())
	done := observability.TrackTransition(action)
	span, ctx := observability.StartTransitionSpan(ctx, action, fileID, actor.ActorID)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, s.opts.TransitionTimeout)
	defer cancel()

	file, events, err := s.execute(ctx, fileID, actor, cmd)
	done(outcome(err))
	span.SetError(err)
	observability.LogTransition(ctx, fileID, actor.ActorID, action, err)
	if err != nil {
		return nil, err
	}

	// Only committed transitions notify.
	for _, ev := range events {
		s.emitter.Emit(ev)
	}
	return file, nil
}

func (s *RoutingService) execute(
	ctx context.Context, fileID uint, actor models.Actor, cmd Command,
) (*models.File, []notifications.Event, error) {
	if RequiresVersion(cmd) && cmd.expectedVersion() <= 0 {
		return nil, nil, models.NewValidationError(fmt.Sprintf(
			"expected_version is required to %s a file", actionVerb(cmd.Action())))
	}

	release, err := s.locker.Acquire(ctx, lock.FileKey(fileID))
	if err != nil {
		return nil, nil, err
	}
	defer release()

	if dt, ok := cmd.(deskTargeted); ok && (dt.targetDesk() != nil || dt.autoDesk()) {
		releaseDesks, err := s.desks.lockCapacity(ctx, fileID, dt.targetDesk())
		if err != nil {
			return nil, nil, err
		}
		defer releaseDesks()
	}

	var (
		result *models.File
		events []notifications.Event
	)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		file, err := tx.Files().GetByID(ctx, fileID)
		if err != nil {
			return err
		}
		if want := cmd.expectedVersion(); want != 0 && want != file.Version {
			return models.NewConflictError(fmt.Sprintf(
				"file %s changed since you loaded it (version %d, now %d)", file.FileNumber, want, file.Version))
		}
		version := file.Version

		t := &transition{
			ctx:   ctx,
			svc:   s,
			tx:    tx,
			file:  file,
			actor: actor,
			now:   s.clock.Now(),
			entry: models.RoutingHistoryEntry{Action: cmd.Action()},
		}
		if err := cmd.apply(t); err != nil {
			return err
		}
		if err := tx.Files().Save(ctx, file, version); err != nil {
			return err
		}

		t.entry.FileID = file.ID
		t.entry.ActorID = actor.ActorID
		t.entry.CreatedAt = t.now
		if err := tx.History().Append(ctx, &t.entry); err != nil {
			return err
		}

		result = file
		events = t.events
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, events, nil
}

// Forward hands the file to a new custodian.
func (s *RoutingService) Forward(ctx context.Context, fileID uint, actor models.Actor, cmd ForwardCmd) (*models.File, error) {
	return s.Apply(ctx, fileID, actor, cmd)
}

// Approve approves the file, finally or on to a next stage.
func (s *RoutingService) Approve(ctx context.Context, fileID uint, actor models.Actor, cmd ApproveCmd) (*models.File, error) {
	return s.Apply(ctx, fileID, actor, cmd)
}

// Reject closes the file as rejected.
func (s *RoutingService) Reject(ctx context.Context, fileID uint, actor models.Actor, cmd RejectCmd) (*models.File, error) {
	return s.Apply(ctx, fileID, actor, cmd)
}

// ReturnToPrevious sends the file back one custodian.
func (s *RoutingService) ReturnToPrevious(ctx context.Context, fileID uint, actor models.Actor, cmd ReturnToPreviousCmd) (*models.File, error) {
	return s.Apply(ctx, fileID, actor, cmd)
}

// ReturnToHost sends the file back to its creator.
func (s *RoutingService) ReturnToHost(ctx context.Context, fileID uint, actor models.Actor, cmd ReturnToHostCmd) (*models.File, error) {
	return s.Apply(ctx, fileID, actor, cmd)
}

// Hold pauses the file's SLA clock.
func (s *RoutingService) Hold(ctx context.Context, fileID uint, actor models.Actor, cmd HoldCmd) (*models.File, error) {
	return s.Apply(ctx, fileID, actor, cmd)
}

// Release resumes the file's SLA clock.
func (s *RoutingService) Release(ctx context.Context, fileID uint, actor models.Actor, cmd ReleaseCmd) (*models.File, error) {
	return s.Apply(ctx, fileID, actor, cmd)
}

// Recall pulls the file regardless of custody.
func (s *RoutingService) Recall(ctx context.Context, fileID uint, actor models.Actor, cmd RecallCmd) (*models.File, error) {
	return s.Apply(ctx, fileID, actor, cmd)
}

// RequestExtension opens an extension request on the file.
func (s *RoutingService) RequestExtension(ctx context.Context, fileID uint, actor models.Actor, cmd RequestExtensionCmd) (*models.File, error) {
	return s.Apply(ctx, fileID, actor, cmd)
}

// ApproveExtension advances an extension request.
func (s *RoutingService) ApproveExtension(ctx context.Context, fileID uint, actor models.Actor, cmd ApproveExtensionCmd) (*models.File, error) {
	return s.Apply(ctx, fileID, actor, cmd)
}

// DenyExtension closes an extension request.
func (s *RoutingService) DenyExtension(ctx context.Context, fileID uint, actor models.Actor, cmd DenyExtensionCmd) (*models.File, error) {
	return s.Apply(ctx, fileID, actor, cmd)
}

// GetFile returns the stored file.
func (s *RoutingService) GetFile(ctx context.Context, fileID uint) (*models.File, error) {
	return s.store.Files().GetByID(ctx, fileID)
}

// GetHistory returns the file's routing history in sequence order.
func (s *RoutingService) GetHistory(ctx context.Context, fileID uint) ([]models.RoutingHistoryEntry, error) {
	if _, err := s.store.Files().GetByID(ctx, fileID); err != nil {
		return nil, err
	}
	return s.store.History().ListByFile(ctx, fileID)
}

// ListExtensions returns every extension request of the file.
func (s *RoutingService) ListExtensions(ctx context.Context, fileID uint) ([]models.ExtensionRequest, error) {
	if _, err := s.store.Files().GetByID(ctx, fileID); err != nil {
		return nil, err
	}
	return s.store.Extensions().ListByFile(ctx, fileID)
}

// TimerSnapshot is the live timer of a file at a given instant.
type TimerSnapshot struct {
	FileID uint      `json:"file_id"`
	At     time.Time `json:"at"`
	sla.Timer
	OnHold    bool `json:"on_hold"`
	RedListed bool `json:"red_listed"`
	Terminal  bool `json:"terminal"`
}

// GetTimerSnapshot computes the timer at now without writing anything.
// Held files report the remaining time frozen at hold; terminal files have no active timer.
func (s *RoutingService) GetTimerSnapshot(ctx context.Context, fileID uint, now time.Time) (*TimerSnapshot, error) {
	file, err := s.store.Files().GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	snap := &TimerSnapshot{
		FileID:    file.ID,
		At:        now,
		OnHold:    file.IsOnHold,
		RedListed: file.IsRedListed,
		Terminal:  file.Status.Terminal(),
	}
	switch {
	case snap.Terminal:
	case file.IsOnHold:
		snap.Timer = sla.Frozen(file.AllottedTime, file.TimeRemaining)
	default:
		snap.Timer = sla.Compute(file.DeskArrivalTime, file.AllottedTime, now)
	}
	return snap, nil
}

// Now exposes the engine clock to adapters that need a snapshot instant.
func (s *RoutingService) Now() time.Time {
	return s.clock.Now()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if code := models.ErrorCode(err); code != "" {
		return code
	}
	return "error"
}

func actionVerb(a models.RoutingAction) string {
	switch a {
	case models.ActionForwarded:
		return "forward"
	case models.ActionApproved:
		return "approve"
	case models.ActionRejected:
		return "reject"
	case models.ActionReturnedToPrevious, models.ActionReturnedToHost:
		return "return"
	case models.ActionOnHold:
		return "hold"
	case models.ActionReleasedFromHold:
		return "release"
	case models.ActionRecalled:
		return "recall"
	}
	return strings.ToLower(string(a))
}

func uintPtr(v uint) *uint {
	return &v
}

// refreshTimerCache recomputes the cached timer columns of a running file.
func refreshTimerCache(f *models.File, now time.Time) {
	timer := sla.Compute(f.DeskArrivalTime, f.AllottedTime, now)
	f.TimeRemaining = timer.RemainingSeconds
	f.TimerPercentage = timer.Percentage
}

// freezeTimerCache stores remaining as the frozen timer of a held file.
func freezeTimerCache(f *models.File, remaining int64) {
	timer := sla.Frozen(f.AllottedTime, &remaining)
	f.TimeRemaining = timer.RemainingSeconds
	f.TimerPercentage = timer.Percentage
}
