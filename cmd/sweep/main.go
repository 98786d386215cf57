// Command sweep runs one red-list pass and exits. Suitable for cron when the API
// server runs with its own monitor disabled or is not running at all.
package main

import (
	"context"
	"log"
	"time"

	"filetrack/internal/bootstrap"
	"filetrack/internal/clock"
	"filetrack/internal/config"
	"filetrack/internal/lock"
	"filetrack/internal/notifications"
	"filetrack/internal/repository"
	"filetrack/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	var locker lock.Locker = lock.NewLocal()
	var sink notifications.Sink = notifications.LogSink{}
	if rdb != nil {
		locker = lock.NewRedis(rdb, cfg.LockTTL())
		sink = notifications.NewNotifier(rdb)
	}
	emitter := notifications.NewEmitter(sink, cfg.NotifyQueueSize, cfg.NotifyTimeout())

	monitor := service.NewRedListMonitor(repository.NewStore(db), locker, clock.System{}, emitter, service.MonitorOptions{
		Workers:     cfg.SweepWorkers,
		FileTimeout: cfg.TransitionTimeout(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	res := monitor.SweepOnce(ctx)
	log.Printf("sweep %s: scanned=%d refreshed=%d red_listed=%d skipped=%d failed=%d",
		res.RunID, res.Scanned, res.Refreshed, res.RedListed, res.Skipped, len(res.Failed))

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := emitter.Close(closeCtx); err != nil {
		log.Printf("notification queue not drained: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
