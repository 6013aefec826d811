package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/statuspulse/statuspulse/internal/config"
	"github.com/statuspulse/statuspulse/internal/logging"
	"github.com/statuspulse/statuspulse/internal/probe"
	"github.com/statuspulse/statuspulse/internal/queue"
	"github.com/statuspulse/statuspulse/internal/repo"
	"github.com/statuspulse/statuspulse/internal/repo/memory"
	"github.com/statuspulse/statuspulse/internal/repo/postgres"
	"github.com/statuspulse/statuspulse/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New("worker", cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var registry repo.TargetRegistry
	var events repo.EventStore
	if cfg.Database.URL != "" {
		pg, err := postgres.New(ctx, cfg.Database.URL, logger)
		if err != nil {
			logger.Fatal("postgres_connect_failed", zap.Error(err))
		}
		defer pg.Close()
		registry, events = pg, pg
	} else {
		logger.Warn("using_memory_store", zap.String("hint", "set database.url for persistence"))
		mem := memory.New()
		registry, events = mem, mem
	}

	q, err := queue.NewRedis(ctx, cfg.Redis.GetRedisOptions(), cfg.Queue.Stream, cfg.Region, logger)
	if err != nil {
		logger.Fatal("redis_connect_failed", zap.Error(err))
	}
	defer q.Close()

	w := worker.New(logger, q, registry, events,
		probe.NewHTTPChecker(cfg.Probe.Timeout),
		worker.Config{
			Consumer: consumerName(),
			Region:   cfg.Region,

			ClaimBatch: cfg.Queue.ClaimBatch,
			ClaimBlock: cfg.Queue.ClaimBlock,

			ProbeTimeout:     cfg.Probe.Timeout,
			ProbeConcurrency: cfg.Probe.Concurrency,

			AutoHealInterval: cfg.AutoHeal.Interval,
			ReclaimMinIdle:   cfg.AutoHeal.MinIdle,
			ReclaimMaxBatch:  cfg.AutoHeal.MaxBatch,
			ReclaimMaxTotal:  cfg.AutoHeal.MaxTotal,

			WatchdogInterval: cfg.Watchdog.Interval,
			CriticalIdle:     cfg.Watchdog.CriticalIdle,
			WriteStall:       cfg.Watchdog.WriteStall,
			LogCooldown:      cfg.Watchdog.LogCooldown,
		})

	logger.Info("worker_start",
		zap.String("region", cfg.Region),
		zap.String("stream", cfg.Queue.Stream),
	)
	w.Run(ctx)
}

// consumerName must be unique within the consumer group so pending entries
// stay attributable to a specific worker instance.
func consumerName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
