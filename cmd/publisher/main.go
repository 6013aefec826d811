package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/statuspulse/statuspulse/internal/config"
	"github.com/statuspulse/statuspulse/internal/logging"
	"github.com/statuspulse/statuspulse/internal/notify"
	"github.com/statuspulse/statuspulse/internal/queue"
	"github.com/statuspulse/statuspulse/internal/repo"
	"github.com/statuspulse/statuspulse/internal/repo/memory"
	"github.com/statuspulse/statuspulse/internal/repo/postgres"
	"github.com/statuspulse/statuspulse/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New("publisher", cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var registry repo.TargetRegistry
	var events repo.EventStore
	var alerts repo.AlertStore
	if cfg.Database.URL != "" {
		pg, err := postgres.New(ctx, cfg.Database.URL, logger)
		if err != nil {
			logger.Fatal("postgres_connect_failed", zap.Error(err))
		}
		defer pg.Close()
		registry, events, alerts = pg, pg, pg
	} else {
		logger.Warn("using_memory_store", zap.String("hint", "set database.url for persistence"))
		mem := memory.New()
		registry, events, alerts = mem, mem, mem
	}

	q, err := queue.NewRedis(ctx, cfg.Redis.GetRedisOptions(), cfg.Queue.Stream, cfg.Region, logger)
	if err != nil {
		logger.Fatal("redis_connect_failed", zap.Error(err))
	}
	defer q.Close()

	pub := scheduler.NewPublisher(logger, registry, q, cfg.Publisher.Interval)

	// The alerter rides alongside the publisher so a single process covers
	// both write-triggering and state-change notifications.
	if cfg.Alert.SlackWebhook != "" {
		alerter := scheduler.NewAlerter(logger, registry, events, alerts,
			notify.NewSlack(cfg.Alert.SlackWebhook),
			scheduler.AlerterConfig{
				AlertOnRecovery: cfg.Alert.AlertOnRecovery,
				Cooldown:        cfg.Alert.Cooldown,
				PollInterval:    cfg.Alert.PollInterval,
			})
		go alerter.Run(ctx)
	}

	logger.Info("publisher_start",
		zap.Duration("interval", cfg.Publisher.Interval),
		zap.String("stream", cfg.Queue.Stream),
		zap.String("region", cfg.Region),
	)
	pub.Run(ctx)
	logger.Info("publisher_stopped")
}
