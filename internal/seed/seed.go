package seed

import (
	"context"
	"fmt"
	"log/slog"

	"filetrack/internal/models"
	"filetrack/internal/observability"
	"filetrack/internal/repository"
	"filetrack/internal/service"
)

// Router is the part of the routing engine the seeder drives.
type Router interface {
	Create(ctx context.Context, actor models.Actor, in service.CreateFileInput) (*models.File, error)
	Forward(ctx context.Context, fileID uint, actor models.Actor, cmd service.ForwardCmd) (*models.File, error)
}

// Options sizes a generated data set.
type Options struct {
	Departments         int
	DivisionsPerDept    int
	OfficersPerDivision int
	FilesPerDept        int
	ForwardPercent      int
	RandSeed            int64
}

// Summary counts what Seed created.
type Summary struct {
	Departments int
	Divisions   int
	Users       int
	Files       int
	Forwarded   int
}

// Seed generates departments with an inward division, working divisions and files.
// Files go through the routing engine so every one has a consistent history.
func Seed(ctx context.Context, store repository.Store, router Router, opts Options) (*Summary, error) {
	if opts.Departments <= 0 {
		opts.Departments = 1
	}
	if opts.DivisionsPerDept <= 0 {
		opts.DivisionsPerDept = 2
	}
	if opts.OfficersPerDivision <= 0 {
		opts.OfficersPerDivision = 2
	}

	log := observability.GlobalLogger
	log.InfoContext(ctx, "seeding started",
		slog.Int("departments", opts.Departments),
		slog.Int("files_per_department", opts.FilesPerDept),
	)

	f := NewFactory(store, opts.RandSeed)
	sum := &Summary{}
	for i := 0; i < opts.Departments; i++ {
		dept, err := f.Department(ctx)
		if err != nil {
			return sum, fmt.Errorf("create department: %w", err)
		}
		sum.Departments++

		inward, err := f.Division(ctx, dept, "Inward")
		if err != nil {
			return sum, fmt.Errorf("create inward division: %w", err)
		}
		sum.Divisions++
		clerk, err := f.User(ctx, inward, models.RoleInwardDesk)
		if err != nil {
			return sum, fmt.Errorf("create inward clerk: %w", err)
		}
		if _, err := f.User(ctx, inward, models.RoleDepartmentAdmin); err != nil {
			return sum, fmt.Errorf("create department admin: %w", err)
		}
		sum.Users += 2

		var officers []*models.User
		for d := 0; d < opts.DivisionsPerDept; d++ {
			div, err := f.Division(ctx, dept, "")
			if err != nil {
				return sum, fmt.Errorf("create division: %w", err)
			}
			sum.Divisions++
			head, err := f.User(ctx, div, models.RoleDivisionHead)
			if err != nil {
				return sum, fmt.Errorf("create division head: %w", err)
			}
			officers = append(officers, head)
			for o := 0; o < opts.OfficersPerDivision; o++ {
				officer, err := f.User(ctx, div, models.RoleOfficer)
				if err != nil {
					return sum, fmt.Errorf("create officer: %w", err)
				}
				officers = append(officers, officer)
			}
			sum.Users += 1 + opts.OfficersPerDivision
		}

		creator := models.Actor{ActorID: clerk.ID, Role: clerk.Role, DepartmentID: dept.ID, DivisionID: inward.ID}
		for n := 0; n < opts.FilesPerDept; n++ {
			file, err := router.Create(ctx, creator, service.CreateFileInput{
				FileNumber:       f.FileNumber(dept),
				Subject:          f.Subject(),
				Priority:         f.Priority(),
				PriorityCategory: f.Category(),
			})
			if err != nil {
				return sum, fmt.Errorf("create file: %w", err)
			}
			sum.Files++

			if !f.Chance(opts.ForwardPercent) {
				continue
			}
			to := f.Pick(officers)
			if _, err := router.Forward(ctx, file.ID, creator, service.ForwardCmd{
				Precondition:     service.Precondition{ExpectedVersion: file.Version},
				TargetDivisionID: to.DivisionID,
				TargetUserID:     to.ID,
				Remarks:          "for examination",
			}); err != nil {
				return sum, fmt.Errorf("forward file %s: %w", file.FileNumber, err)
			}
			sum.Forwarded++
		}
	}

	log.InfoContext(ctx, "seeding completed",
		slog.Int("departments", sum.Departments),
		slog.Int("users", sum.Users),
		slog.Int("files", sum.Files),
		slog.Int("forwarded", sum.Forwarded),
	)
	return sum, nil
}
