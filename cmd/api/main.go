package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/statuspulse/statuspulse/internal/config"
	"github.com/statuspulse/statuspulse/internal/httpapi"
	"github.com/statuspulse/statuspulse/internal/logging"
	"github.com/statuspulse/statuspulse/internal/queue"
	"github.com/statuspulse/statuspulse/internal/repo"
	"github.com/statuspulse/statuspulse/internal/repo/memory"
	"github.com/statuspulse/statuspulse/internal/repo/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New("api", cfg.LogDir)
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

	api := httpapi.NewServer(logger, registry, events, q, httpapi.ViewConfig{
		SlotCount:    cfg.Aggregate.SlotCount,
		SlotInterval: cfg.Aggregate.SlotInterval,
		DayWindow:    cfg.Aggregate.DayWindow,
		Location:     cfg.Aggregate.Location(),
	})

	srv := &http.Server{Addr: cfg.API.Addr, Handler: api.Router()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("api_listen", zap.String("addr", cfg.API.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api_serve_failed", zap.Error(err))
	}
	logger.Info("api_stopped")
}
