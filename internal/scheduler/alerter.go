package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/statuspulse/statuspulse/internal/domain"
	"github.com/statuspulse/statuspulse/internal/notify"
	"github.com/statuspulse/statuspulse/internal/repo"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
	PollInterval    time.Duration
}

// Alerter watches the newest event per active target and posts a notification
// when the UP/DOWN state flips. It rides on the same read-side data as the
// aggregation views and never touches the queue.
type Alerter struct {
	logger   *zap.Logger
	registry repo.TargetRegistry
	events   repo.EventStore
	alertDB  repo.AlertStore
	notifier notify.Notifier
	cfg      AlerterConfig
}

func NewAlerter(
	logger *zap.Logger,
	registry repo.TargetRegistry,
	events repo.EventStore,
	alertDB repo.AlertStore,
	notifier notify.Notifier,
	cfg AlerterConfig,
) *Alerter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	return &Alerter{
		logger:   logger,
		registry: registry,
		events:   events,
		alertDB:  alertDB,
		notifier: notifier,
		cfg:      cfg,
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	t := time.NewTicker(a.cfg.PollInterval)
	defer t.Stop()

	// initial pass
	_ = a.scanOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			_ = a.scanOnce(ctx)
		}
	}
}

func (a *Alerter) scanOnce(ctx context.Context) error {
	targets, err := a.registry.ListActive(ctx)
	if err != nil {
		a.logger.Warn("alerter_list_error", zap.Error(err))
		return err
	}
	if len(targets) == 0 {
		return nil
	}

	ids := make([]domain.TargetID, 0, len(targets))
	urls := make(map[domain.TargetID]string, len(targets))
	for _, t := range targets {
		ids = append(ids, t.ID)
		urls[t.ID] = t.URL
	}

	latest, err := a.events.QueryRecent(ctx, ids, 1)
	if err != nil {
		a.logger.Warn("alerter_query_error", zap.Error(err))
		return err
	}

	now := time.Now()
	for _, e := range latest {
		rec, _ := a.alertDB.Get(ctx, e.TargetID)

		// Has the up/down state changed compared to what we last recorded?
		stateChanged := rec == nil || rec.LastState != e.Status

		// Cooldown only matters for DOWN alerts (suppresses noisy repeats).
		cooled := true
		if rec != nil && rec.LastSentAt != nil {
			cooled = now.Sub(*rec.LastSentAt) >= a.cfg.Cooldown
		}

		downAlert := stateChanged && !e.Up() && cooled
		recoveryAlert := stateChanged && e.Up() && a.cfg.AlertOnRecovery // bypass cooldown

		if downAlert || recoveryAlert {
			title := "🔴 Target DOWN"
			if e.Up() {
				title = "🟢 Target RECOVERED"
			}

			httpTxt := "n/a"
			if e.HTTPStatus != nil {
				httpTxt = fmt.Sprintf("%d", *e.HTTPStatus)
			}
			latencyTxt := "n/a"
			if e.ResponseTimeMS != nil {
				latencyTxt = fmt.Sprintf("%.0f ms", *e.ResponseTimeMS)
			}

			text := fmt.Sprintf(
				"URL: %s\nHTTP: %s\nResponse time: %s\nRegion: %s\nChecked: %s",
				urls[e.TargetID], httpTxt, latencyTxt, e.Region, e.CheckedAt.Format(time.RFC3339),
			)

			// Best-effort send and record the send time
			_ = a.notifier.Send(ctx, title, text)
			_ = a.alertDB.Set(ctx, e.TargetID, e.Status, now)
		}
	}
	return nil
}
