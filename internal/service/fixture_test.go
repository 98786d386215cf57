package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"filetrack/internal/clock"
	"filetrack/internal/database"
	"filetrack/internal/featureflags"
	"filetrack/internal/lock"
	"filetrack/internal/models"
	"filetrack/internal/notifications"
	"filetrack/internal/repository"
	"filetrack/internal/sla"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type delivered struct {
	userID uint
	event  notifications.Event
}

type recordingSink struct {
	mu  sync.Mutex
	got []delivered
}

func (s *recordingSink) Deliver(_ context.Context, userID uint, ev notifications.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, delivered{userID: userID, event: ev})
	return nil
}

func (s *recordingSink) to(userID uint, kind notifications.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.got {
		if d.userID == userID && d.event.Kind == kind {
			n++
		}
	}
	return n
}

type fixtureConfig struct {
	flags             string
	requireSuperAdmin bool
	resetClock        bool
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   repository.Store
	clock   *clock.Fake
	locker  *lock.Local
	sink    *recordingSink
	emitter *notifications.Emitter
	routing *RoutingService
	desks   *DeskService
	monitor *RedListMonitor

	dept     models.Department
	otherDpt models.Department
	inward   models.Division
	lands    models.Division
	outside  models.Division

	clerk    models.User
	officer  models.User
	head     models.User
	admin    models.User
	super    models.User
	stranger models.User
}

func newFixture(t *testing.T, opts ...func(*fixtureConfig)) *fixture {
	t.Helper()
	cfg := fixtureConfig{
		flags:             "allow_recall_terminal=on,auto_desk_provisioning=on",
		requireSuperAdmin: true,
	}
	for _, o := range opts {
		o(&cfg)
	}

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)

	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: repository.NewStore(db),
		clock: clock.NewFake(t0),
		sink:  &recordingSink{},
	}
	f.emitter = notifications.NewEmitter(f.sink, 64, time.Second)
	t.Cleanup(func() {
		_ = f.emitter.Close(context.Background())
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f.locker = lock.NewLocal()
	f.desks = NewDeskService(f.store, f.locker, 2)
	f.routing = NewRoutingService(
		f.store, f.locker, f.clock, sla.NewPolicy(nil), featureflags.NewManager(cfg.flags), f.emitter, f.desks,
		RoutingOptions{
			TransitionTimeout:          5 * time.Second,
			ExtensionRequireSuperAdmin: cfg.requireSuperAdmin,
			ExtensionResetClock:        cfg.resetClock,
		},
	)
	f.monitor = NewRedListMonitor(f.store, f.locker, f.clock, f.emitter, MonitorOptions{Workers: 3, FileTimeout: 5 * time.Second})

	f.seedDirectory()
	return f
}

func (f *fixture) seedDirectory() {
	dir := f.store.Directory()
	f.dept = models.Department{Code: "rev", Name: "Revenue"}
	require.NoError(f.t, dir.CreateDepartment(f.ctx, &f.dept))
	f.otherDpt = models.Department{Code: "hlth", Name: "Health"}
	require.NoError(f.t, dir.CreateDepartment(f.ctx, &f.otherDpt))

	f.inward = models.Division{DepartmentID: f.dept.ID, Name: "Inward"}
	require.NoError(f.t, dir.CreateDivision(f.ctx, &f.inward))
	f.lands = models.Division{DepartmentID: f.dept.ID, Name: "Land Records"}
	require.NoError(f.t, dir.CreateDivision(f.ctx, &f.lands))
	f.outside = models.Division{DepartmentID: f.otherDpt.ID, Name: "Clinics"}
	require.NoError(f.t, dir.CreateDivision(f.ctx, &f.outside))

	mk := func(name string, role models.Role, dept models.Department, div models.Division) models.User {
		u := models.User{
			Name:         name,
			Email:        strings.ToLower(name) + "@example.gov",
			Role:         role,
			DepartmentID: dept.ID,
			DivisionID:   div.ID,
			IsActive:     true,
		}
		require.NoError(f.t, dir.CreateUser(f.ctx, &u))
		return u
	}
	f.clerk = mk("Clerk", models.RoleInwardDesk, f.dept, f.inward)
	f.officer = mk("Officer", models.RoleOfficer, f.dept, f.lands)
	f.head = mk("Head", models.RoleDivisionHead, f.dept, f.lands)
	f.admin = mk("Admin", models.RoleDepartmentAdmin, f.dept, f.inward)
	f.super = mk("Super", models.RoleSuperAdmin, f.dept, f.inward)
	f.stranger = mk("Stranger", models.RoleOfficer, f.otherDpt, f.outside)
}

func actorOf(u models.User) models.Actor {
	return models.Actor{ActorID: u.ID, Role: u.Role, DepartmentID: u.DepartmentID, DivisionID: u.DivisionID}
}

func (f *fixture) createFile(number string, category models.PriorityCategory) *models.File {
	f.t.Helper()
	file, err := f.routing.Create(f.ctx, actorOf(f.clerk), CreateFileInput{
		FileNumber:       number,
		Subject:          "Mutation of land record",
		Priority:         models.PriorityNormal,
		PriorityCategory: category,
	})
	require.NoError(f.t, err)
	return file
}

func (f *fixture) forwardTo(fileID uint, by models.User, to models.User) *models.File {
	f.t.Helper()
	file, err := f.routing.Forward(f.ctx, fileID, actorOf(by), ForwardCmd{
		Precondition:     f.seen(fileID),
		TargetDivisionID: to.DivisionID,
		TargetUserID:     to.ID,
	})
	require.NoError(f.t, err)
	return file
}

// seen is the precondition of a caller who has just loaded the file.
func (f *fixture) seen(fileID uint) Precondition {
	f.t.Helper()
	return Precondition{ExpectedVersion: f.reload(fileID).Version}
}

func (f *fixture) reload(fileID uint) *models.File {
	f.t.Helper()
	file, err := f.store.Files().GetByID(f.ctx, fileID)
	require.NoError(f.t, err)
	return file
}

func (f *fixture) history(fileID uint) []models.RoutingHistoryEntry {
	f.t.Helper()
	entries, err := f.store.History().ListByFile(f.ctx, fileID)
	require.NoError(f.t, err)
	return entries
}

// flush waits for queued notifications; the emitter accepts nothing afterwards.
func (f *fixture) flush() {
	require.NoError(f.t, f.emitter.Close(context.Background()))
}
