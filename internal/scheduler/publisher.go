package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/statuspulse/statuspulse/internal/domain"
	"github.com/statuspulse/statuspulse/internal/metrics"
	"github.com/statuspulse/statuspulse/internal/queue"
	"github.com/statuspulse/statuspulse/internal/repo"
)

// Publisher re-derives the full work set from the registry every interval and
// enqueues one task per active target. It is the pipeline's sole retry
// mechanism: a check that failed to run gets a fresh task next cycle simply
// because its target is still active. The worker never re-queues anything.
type Publisher struct {
	Logger   *zap.Logger
	Registry repo.TargetRegistry
	Queue    queue.TaskQueue
	Interval time.Duration

	inFlight atomic.Bool
}

func NewPublisher(logger *zap.Logger, reg repo.TargetRegistry, q queue.TaskQueue, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Publisher{Logger: logger, Registry: reg, Queue: q, Interval: interval}
}

// Run starts the loop. It does an immediate pass, then publishes each tick.
// Stops when ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	t := time.NewTicker(p.Interval)
	defer t.Stop()

	p.PublishOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			p.Logger.Info("publisher_stopped")
			return
		case <-t.C:
			// A cycle still running when the timer fires is skipped, not
			// queued behind it.
			go p.PublishOnce(ctx)
		}
	}
}

// PublishOnce runs a single cycle. Errors are logged and swallowed: the next
// tick retries unconditionally, so nothing here may crash the process.
func (p *Publisher) PublishOnce(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.Logger.Warn("publisher_cycle_skipped_overlap")
		metrics.PublishCycles.WithLabelValues("skipped").Inc()
		return
	}
	defer p.inFlight.Store(false)

	targets, err := p.Registry.ListActive(ctx)
	if err != nil {
		p.Logger.Error("publisher_list_error", zap.Error(err))
		metrics.PublishCycles.WithLabelValues("error").Inc()
		return
	}
	if len(targets) == 0 {
		p.Logger.Info("publisher_no_active_targets")
		metrics.PublishCycles.WithLabelValues("ok").Inc()
		return
	}

	var published int
	for _, t := range targets {
		task := domain.CheckTask{TargetID: t.ID, URL: t.URL}
		if err := p.Queue.Enqueue(ctx, task); err != nil {
			p.Logger.Error("publisher_enqueue_error",
				zap.String("target_id", string(t.ID)),
				zap.Error(err),
			)
			metrics.PublishCycles.WithLabelValues("error").Inc()
			return
		}
		published++
		metrics.TasksPublished.Inc()
	}

	p.Logger.Info("publisher_cycle_done", zap.Int("published", published))
	metrics.PublishCycles.WithLabelValues("ok").Inc()
}
