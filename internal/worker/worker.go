package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/statuspulse/statuspulse/internal/domain"
	"github.com/statuspulse/statuspulse/internal/metrics"
	"github.com/statuspulse/statuspulse/internal/probe"
	"github.com/statuspulse/statuspulse/internal/queue"
	"github.com/statuspulse/statuspulse/internal/repo"
)

type Config struct {
	Consumer string // worker instance identity within the group
	Region   string // consumer group / event region tag

	ClaimBatch int
	ClaimBlock time.Duration

	ProbeTimeout     time.Duration
	ProbeConcurrency int

	AutoHealInterval time.Duration
	ReclaimMinIdle   time.Duration
	ReclaimMaxBatch  int
	ReclaimMaxTotal  int

	WatchdogInterval time.Duration
	CriticalIdle     time.Duration
	WriteStall       time.Duration
	LogCooldown      time.Duration
}

// Worker is one consumer in the region's group. It runs three loops that
// share nothing but the queue and the Health counters: consumption (claim,
// probe, persist, ack), auto-heal (reclaim stale deliveries into the same
// path), and the liveness watchdog (rate-limited critical logs, no restarts).
type Worker struct {
	logger   *zap.Logger
	queue    queue.TaskQueue
	registry repo.TargetRegistry
	events   repo.EventStore
	checker  probe.Checker
	cfg      Config
	health   *Health
}

func New(logger *zap.Logger, q queue.TaskQueue, reg repo.TargetRegistry, es repo.EventStore, chk probe.Checker, cfg Config) *Worker {
	if cfg.ClaimBatch < 1 {
		cfg.ClaimBatch = 1
	}
	if cfg.ProbeConcurrency < 1 {
		cfg.ProbeConcurrency = 1
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.LogCooldown <= 0 {
		cfg.LogCooldown = 5 * time.Minute
	}
	return &Worker{
		logger:   logger,
		queue:    q,
		registry: reg,
		events:   es,
		checker:  chk,
		cfg:      cfg,
		health:   NewHealth(),
	}
}

// Run blocks until ctx is cancelled. Nothing inside any loop is allowed to
// terminate the process; unacknowledged deliveries of a killed worker become
// reclaimable by the survivors once they go idle long enough.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.consumeLoop(ctx)
	}()
	if w.cfg.AutoHealInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.autoHealLoop(ctx)
		}()
	}
	if w.cfg.WatchdogInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.watchdogLoop(ctx)
		}()
	}
	wg.Wait()
	w.logger.Info("worker_stopped", zap.String("consumer", w.cfg.Consumer))
}

func (w *Worker) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// The blocking claim is the only idle wait in the pipeline; no
		// sleep is layered on top of it.
		deliveries, err := w.queue.Claim(ctx, w.cfg.Consumer, w.cfg.ClaimBatch, w.cfg.ClaimBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("worker_claim_error", zap.Error(err))
			continue
		}
		if len(deliveries) == 0 {
			continue
		}
		w.Process(ctx, deliveries)
	}
}

// Process runs a batch of deliveries through validate → probe → persist and
// acknowledges every one of them on the way out: stale-target skips,
// classified DOWNs, and store-write failures alike. A failed write is retried
// only through the publisher's next cycle, never via queue redelivery, so the
// pending list can't grow from handled work.
func (w *Worker) Process(ctx context.Context, deliveries []queue.Delivery) {
	ids := make([]string, len(deliveries))
	for i, d := range deliveries {
		ids[i] = d.ID
	}
	defer func() {
		if err := w.queue.Acknowledge(ctx, ids...); err != nil {
			// Worst case the deliveries come back via auto-heal; probing
			// again and appending another event is harmless.
			w.logger.Error("worker_ack_error", zap.Error(err), zap.Int("deliveries", len(ids)))
		}
	}()

	// Re-check the registry per delivery: targets deleted or paused since
	// dispatch are skipped without a probe.
	valid := make([]queue.Delivery, 0, len(deliveries))
	for _, d := range deliveries {
		t, err := w.registry.GetByID(ctx, d.Task.TargetID)
		if err != nil {
			w.logger.Warn("worker_registry_error",
				zap.String("target_id", string(d.Task.TargetID)),
				zap.Error(err),
			)
			continue
		}
		if t == nil || !t.IsActive {
			w.logger.Debug("worker_stale_target_skipped",
				zap.String("target_id", string(d.Task.TargetID)),
			)
			continue
		}
		d.Task.URL = t.URL // registry URL wins over the queued copy
		valid = append(valid, d)
	}
	if len(valid) == 0 {
		return
	}

	events := w.probeAll(ctx, valid)

	if err := w.events.AppendBatch(ctx, events); err != nil {
		w.logger.Error("worker_store_write_error", zap.Error(err), zap.Int("events", len(events)))
		metrics.WriteFailures.Inc()
		return
	}
	metrics.EventsWritten.Add(float64(len(events)))
	w.health.MarkWrite()
}

// probeAll fans the batch out across a bounded pool and waits for every probe
// to settle. One probe failing is a DOWN result, not an error, and never
// cancels its siblings.
func (w *Worker) probeAll(ctx context.Context, deliveries []queue.Delivery) []domain.UptimeEvent {
	events := make([]domain.UptimeEvent, len(deliveries))
	sem := make(chan struct{}, w.cfg.ProbeConcurrency)
	var wg sync.WaitGroup

	for i, d := range deliveries {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, d queue.Delivery) {
			defer wg.Done()
			defer func() { <-sem }()

			cctx, cancel := context.WithTimeout(ctx, w.cfg.ProbeTimeout)
			defer cancel()

			start := time.Now()
			out := w.checker.Check(cctx, d.Task.URL)
			metrics.ProbeDuration.Observe(time.Since(start).Seconds())
			metrics.ProbesTotal.WithLabelValues(string(out.Status)).Inc()

			ev := domain.UptimeEvent{
				TargetID:  d.Task.TargetID,
				Region:    w.cfg.Region,
				Status:    out.Status,
				CheckedAt: time.Now().UTC(),
			}
			if out.StatusCode != 0 {
				code := out.StatusCode
				ev.HTTPStatus = &code
			}
			if out.ResponseTimeMS > 0 {
				rt := out.ResponseTimeMS
				ev.ResponseTimeMS = &rt
			}
			events[i] = ev
		}(i, d)
	}
	wg.Wait()
	return events
}

func (w *Worker) autoHealLoop(ctx context.Context) {
	t := time.NewTicker(w.cfg.AutoHealInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			reclaimed, err := w.queue.ReclaimStale(ctx,
				w.cfg.Consumer, w.cfg.ReclaimMinIdle, w.cfg.ReclaimMaxBatch, w.cfg.ReclaimMaxTotal)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Error("worker_reclaim_error", zap.Error(err))
				continue
			}
			if len(reclaimed) == 0 {
				continue
			}
			metrics.Reclaimed.Add(float64(len(reclaimed)))
			w.logger.Info("worker_reclaimed_stale",
				zap.Int("deliveries", len(reclaimed)),
				zap.Duration("min_idle", w.cfg.ReclaimMinIdle),
			)
			// Reclaimed deliveries flow through the same path as fresh
			// ones, including the stale-target short-circuit.
			w.Process(ctx, reclaimed)
		}
	}
}

func (w *Worker) watchdogLoop(ctx context.Context) {
	t := time.NewTicker(w.cfg.WatchdogInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.watchdogPass(ctx)
		}
	}
}

// watchdogPass emits rate-limited critical logs for a stuck backlog or a
// write stall. It never terminates the process; restart-on-stall is an
// operational concern outside the worker.
func (w *Worker) watchdogPass(ctx context.Context) {
	info, err := w.queue.PendingInfo(ctx)
	if err != nil {
		w.logger.Warn("worker_pending_info_error", zap.Error(err))
	} else {
		metrics.QueuePending.Set(float64(info.Count))
		metrics.QueueOldestIdle.Set(info.OldestIdle.Seconds())

		if info.Count > 0 && info.OldestIdle >= w.cfg.CriticalIdle &&
			w.health.AllowCritical("backlog", w.cfg.LogCooldown) {
			// Auto-heal is expected to self-correct; this is the signal
			// that it isn't keeping up.
			w.logger.Error("worker_backlog_critical",
				zap.Int64("pending", info.Count),
				zap.Duration("oldest_idle", info.OldestIdle),
				zap.Duration("threshold", w.cfg.CriticalIdle),
			)
		}
	}

	if w.cfg.WriteStall > 0 {
		if since := time.Since(w.health.LastWrite()); since > w.cfg.WriteStall &&
			w.health.AllowCritical("write_stall", w.cfg.LogCooldown) {
			w.logger.Error("worker_write_stall",
				zap.Duration("since_last_write", since),
				zap.Duration("threshold", w.cfg.WriteStall),
			)
		}
	}
}
