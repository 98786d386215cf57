package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"filetrack/internal/lock"
	"filetrack/internal/models"
	"filetrack/internal/observability"
	"filetrack/internal/repository"
	"filetrack/internal/validation"
)

// maxDeskNameAttempts bounds the search for a free generated desk name.
const maxDeskNameAttempts = 1000

// DeskService manages desk capacity and provisioning.
type DeskService struct {
	store           repository.Store
	locker          lock.Locker
	defaultCapacity int
}

// NewDeskService returns a new DeskService. defaultCapacity applies to auto-created desks.
func NewDeskService(store repository.Store, locker lock.Locker, defaultCapacity int) *DeskService {
	if defaultCapacity <= 0 {
		defaultCapacity = 20
	}
	return &DeskService{store: store, locker: locker, defaultCapacity: defaultCapacity}
}

// CreateDeskInput describes a desk created by an administrator.
type CreateDeskInput struct {
	Name           string `json:"name"`
	DepartmentID   uint   `json:"department_id"`
	DivisionID     *uint  `json:"division_id,omitempty"`
	MaxFilesPerDay int    `json:"max_files_per_day"`
}

// Create adds a desk on behalf of a department administrator.
func (s *DeskService) Create(ctx context.Context, actor models.Actor, in CreateDeskInput) (*models.Desk, error) {
	if !actor.AdministersDepartment(in.DepartmentID) {
		return nil, models.NewForbiddenError("only a department administrator can create desks")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, models.NewValidationError("desk name is required")
	}
	if err := validation.ValidateDeskName(name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.MaxFilesPerDay <= 0 {
		return nil, models.NewValidationError("max files per day must be positive")
	}

	desk := &models.Desk{
		Name:           name,
		DepartmentID:   in.DepartmentID,
		DivisionID:     in.DivisionID,
		MaxFilesPerDay: in.MaxFilesPerDay,
		IsActive:       true,
	}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Directory().GetDepartment(ctx, in.DepartmentID); err != nil {
			return err
		}
		if err := checkDivisionInDepartment(ctx, tx, in.DepartmentID, in.DivisionID); err != nil {
			return err
		}
		taken, err := tx.Desks().NameExists(ctx, name)
		if err != nil {
			return err
		}
		if taken {
			return models.NewValidationError(fmt.Sprintf("desk %s already exists", name))
		}
		return tx.Desks().Create(ctx, desk)
	})
	if err != nil {
		return nil, err
	}
	return desk, nil
}

// Assign places a file on a desk after checking the desk is active, in the file's department
// and below capacity. Assignment does not move custody and records no history entry.
func (s *DeskService) Assign(ctx context.Context, fileID, deskID uint, actor models.Actor) (*models.File, error) {
	done := observability.TrackTransition("DESK_ASSIGNED")
	file, err := s.assign(ctx, fileID, deskID, actor)
	done(outcome(err))
	return file, err
}

func (s *DeskService) assign(ctx context.Context, fileID, deskID uint, actor models.Actor) (*models.File, error) {
	releaseFile, err := s.locker.Acquire(ctx, lock.FileKey(fileID))
	if err != nil {
		return nil, err
	}
	defer releaseFile()
	releaseDesks, err := s.lockCapacity(ctx, fileID, &deskID)
	if err != nil {
		return nil, err
	}
	defer releaseDesks()

	var result *models.File
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		file, err := tx.Files().GetByID(ctx, fileID)
		if err != nil {
			return err
		}
		if !file.IsCustodian(actor.ActorID) && !actor.AdministersDepartment(file.DepartmentID) {
			return models.NewForbiddenError("only the current custodian or a department administrator can assign a desk")
		}
		if file.Status.Terminal() {
			return models.NewConflictError(fmt.Sprintf("file %s is already %s", file.FileNumber, strings.ToLower(string(file.Status))))
		}
		if err := s.reserve(ctx, tx, deskID, file); err != nil {
			return err
		}
		version := file.Version
		file.DeskID = &deskID
		if err := tx.Files().Save(ctx, file, version); err != nil {
			return err
		}
		result = file
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// lockCapacity takes the capacity locks for placing fileID. The caller holds the file lock.
func (s *DeskService) lockCapacity(ctx context.Context, fileID uint, deskID *uint) (func(), error) {
	file, err := s.store.Files().GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return s.lockScope(ctx, file.DepartmentID, deskID)
}

// lockScope serializes capacity checks and provisioning in a department, then locks deskID when set.
func (s *DeskService) lockScope(ctx context.Context, departmentID uint, deskID *uint) (func(), error) {
	releaseScope, err := s.locker.Acquire(ctx, lock.DeskScopeKey(departmentID))
	if err != nil {
		return nil, err
	}
	if deskID == nil {
		return releaseScope, nil
	}
	releaseDesk, err := s.locker.Acquire(ctx, lock.DeskKey(*deskID))
	if err != nil {
		releaseScope()
		return nil, err
	}
	return func() {
		releaseDesk()
		releaseScope()
	}, nil
}

// reserve checks that file may be placed on the desk.
func (s *DeskService) reserve(ctx context.Context, tx repository.Store, deskID uint, file *models.File) error {
	desk, err := tx.Desks().GetByID(ctx, deskID)
	if err != nil {
		return err
	}
	if !desk.IsActive {
		return models.NewConflictError(fmt.Sprintf("desk %s is inactive", desk.Name))
	}
	if desk.DepartmentID != file.DepartmentID {
		return models.NewValidationError(fmt.Sprintf("desk %s belongs to another department", desk.Name))
	}
	count, err := tx.Files().CountActiveOnDesk(ctx, desk.ID, file.ID)
	if err != nil {
		return err
	}
	if count >= int64(desk.MaxFilesPerDay) {
		return models.NewCapacityError(fmt.Sprintf("desk %s is at capacity (%d/%d)", desk.Name, count, desk.MaxFilesPerDay))
	}
	return nil
}

// AutoCreate provisions a new desk named DESK-<deptcode>-<n> in the scope.
func (s *DeskService) AutoCreate(ctx context.Context, departmentID uint, divisionID *uint) (*models.Desk, error) {
	release, err := s.lockScope(ctx, departmentID, nil)
	if err != nil {
		return nil, err
	}
	defer release()

	var desk *models.Desk
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := checkDivisionInDepartment(ctx, tx, departmentID, divisionID); err != nil {
			return err
		}
		var err error
		desk, err = s.autoCreate(ctx, tx, departmentID, divisionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return desk, nil
}

func (s *DeskService) autoCreate(ctx context.Context, tx repository.Store, departmentID uint, divisionID *uint) (*models.Desk, error) {
	dept, err := tx.Directory().GetDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	n, err := tx.Desks().CountByDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(dept.Code))
	for attempt := 0; attempt < maxDeskNameAttempts; attempt++ {
		name := fmt.Sprintf("DESK-%s-%d", code, n+1+int64(attempt))
		taken, err := tx.Desks().NameExists(ctx, name)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		desk := &models.Desk{
			Name:           name,
			DepartmentID:   departmentID,
			DivisionID:     divisionID,
			MaxFilesPerDay: s.defaultCapacity,
			IsAutoCreated:  true,
			IsActive:       true,
		}
		if err := tx.Desks().Create(ctx, desk); err != nil {
			return nil, err
		}
		observability.DesksAutoCreated.Inc()
		observability.GlobalLogger.InfoContext(ctx, "desk auto-created",
			slog.String("desk", desk.Name),
			slog.Uint64("department_id", uint64(departmentID)),
		)
		return desk, nil
	}
	return nil, models.NewConflictError(fmt.Sprintf("no free desk name for department %s", code))
}

// CheckAndAutoCreate returns the first active desk in scope with room to spare,
// provisioning a new one only when every active desk is full. created reports provisioning.
func (s *DeskService) CheckAndAutoCreate(ctx context.Context, departmentID uint, divisionID *uint) (desk *models.Desk, created bool, err error) {
	release, err := s.lockScope(ctx, departmentID, nil)
	if err != nil {
		return nil, false, err
	}
	defer release()

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := checkDivisionInDepartment(ctx, tx, departmentID, divisionID); err != nil {
			return err
		}
		var err error
		desk, created, err = s.checkAndAutoCreate(ctx, tx, departmentID, divisionID, 0)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return desk, created, nil
}

func (s *DeskService) checkAndAutoCreate(
	ctx context.Context, tx repository.Store, departmentID uint, divisionID *uint, excludeFileID uint,
) (*models.Desk, bool, error) {
	desks, err := tx.Desks().ListByScope(ctx, departmentID, divisionID, true)
	if err != nil {
		return nil, false, err
	}
	for i := range desks {
		count, err := tx.Files().CountActiveOnDesk(ctx, desks[i].ID, excludeFileID)
		if err != nil {
			return nil, false, err
		}
		if count < int64(desks[i].MaxFilesPerDay) {
			return &desks[i], false, nil
		}
	}
	desk, err := s.autoCreate(ctx, tx, departmentID, divisionID)
	if err != nil {
		return nil, false, err
	}
	return desk, true, nil
}

// Deactivate retires an empty desk. Desks are never deleted.
func (s *DeskService) Deactivate(ctx context.Context, deskID uint, actor models.Actor) error {
	current, err := s.store.Desks().GetByID(ctx, deskID)
	if err != nil {
		return err
	}
	release, err := s.lockScope(ctx, current.DepartmentID, &deskID)
	if err != nil {
		return err
	}
	defer release()

	return s.store.WithinTx(ctx, func(tx repository.Store) error {
		desk, err := tx.Desks().GetByID(ctx, deskID)
		if err != nil {
			return err
		}
		if !actor.AdministersDepartment(desk.DepartmentID) {
			return models.NewForbiddenError("only a department administrator can deactivate desks")
		}
		if !desk.IsActive {
			return models.NewConflictError(fmt.Sprintf("desk %s is already inactive", desk.Name))
		}
		count, err := tx.Files().CountActiveOnDesk(ctx, desk.ID, 0)
		if err != nil {
			return err
		}
		if count > 0 {
			return models.NewConflictError(fmt.Sprintf("desk %s still has %d active file(s)", desk.Name, count))
		}
		return tx.Desks().SetActive(ctx, desk.ID, false)
	})
}

// Stats reports load per desk in scope, inactive desks included.
func (s *DeskService) Stats(ctx context.Context, departmentID uint, divisionID *uint) ([]models.DeskStats, error) {
	desks, err := s.store.Desks().ListByScope(ctx, departmentID, divisionID, false)
	if err != nil {
		return nil, err
	}
	stats := make([]models.DeskStats, 0, len(desks))
	for _, d := range desks {
		count, err := s.store.Files().CountActiveOnDesk(ctx, d.ID, 0)
		if err != nil {
			return nil, err
		}
		var utilization float64
		if d.MaxFilesPerDay > 0 {
			utilization = float64(count) / float64(d.MaxFilesPerDay) * 100
		}
		stats = append(stats, models.DeskStats{Desk: d, ActiveFiles: count, Utilization: utilization})
	}
	return stats, nil
}

func checkDivisionInDepartment(ctx context.Context, tx repository.Store, departmentID uint, divisionID *uint) error {
	if divisionID == nil {
		return nil
	}
	div, err := tx.Directory().GetDivision(ctx, *divisionID)
	if err != nil {
		return err
	}
	if div.DepartmentID != departmentID {
		return models.NewValidationError(fmt.Sprintf("division %d is outside department %d", div.ID, departmentID))
	}
	return nil
}
