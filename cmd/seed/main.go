// Command seed populates the routing store with a directory and sample files.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"filetrack/internal/clock"
	"filetrack/internal/config"
	"filetrack/internal/database"
	"filetrack/internal/featureflags"
	"filetrack/internal/lock"
	"filetrack/internal/notifications"
	"filetrack/internal/repository"
	"filetrack/internal/seed"
	"filetrack/internal/service"
	"filetrack/internal/sla"
)

func main() {
	fixture := flag.String("directory", "", "YAML org chart to load instead of generated departments")
	departments := flag.Int("departments", 3, "Number of generated departments")
	divisions := flag.Int("divisions", 3, "Working divisions per generated department")
	officers := flag.Int("officers", 2, "Officers per generated division")
	files := flag.Int("files", 25, "Files opened per generated department")
	forwardPct := flag.Int("forward-pct", 60, "Share of generated files forwarded once")
	randSeed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for generated data")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	store := repository.NewStore(db)
	ctx := context.Background()

	if *fixture != "" {
		fx, err := seed.LoadDirectoryFile(*fixture)
		if err != nil {
			log.Fatalf("Failed to read fixture: %v", err)
		}
		dir, err := fx.Apply(ctx, store)
		if err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
		log.Printf("Loaded %d departments, %d divisions, %d users, %d desks",
			len(dir.Departments), len(dir.Divisions), len(dir.Users), len(dir.Desks))
		return
	}

	emitter := notifications.NewEmitter(notifications.LogSink{}, cfg.NotifyQueueSize, cfg.NotifyTimeout())
	defer func() { _ = emitter.Close(context.Background()) }()
	locker := lock.NewLocal()
	desks := service.NewDeskService(store, locker, cfg.DeskDefaultCapacity)
	router := service.NewRoutingService(
		store, locker, clock.System{}, sla.NewPolicy(cfg.SLAOverrides()), featureflags.NewManager(cfg.FeatureFlags),
		emitter, desks, service.RoutingOptions{TransitionTimeout: cfg.TransitionTimeout()},
	)

	summary, err := seed.Seed(ctx, store, router, seed.Options{
		Departments:         *departments,
		DivisionsPerDept:    *divisions,
		OfficersPerDivision: *officers,
		FilesPerDept:        *files,
		ForwardPercent:      *forwardPct,
		RandSeed:            *randSeed,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d departments, %d divisions, %d users, %d files (%d forwarded)",
		summary.Departments, summary.Divisions, summary.Users, summary.Files, summary.Forwarded)
}
