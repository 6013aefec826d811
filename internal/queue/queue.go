package queue

import (
	"context"
	"time"

	"github.com/statuspulse/statuspulse/internal/domain"
)

// Delivery is one claimed queue entry. The ID is assigned by the queue and is
// the handle used for acknowledgement.
type Delivery struct {
	ID   string
	Task domain.CheckTask
}

// PendingInfo describes the claimed-but-unacknowledged backlog of a group.
type PendingInfo struct {
	Count      int64
	OldestIdle time.Duration
}

// TaskQueue is a durable, ordered log with consumer-group delivery.
//
// Every delivery is in exactly one of three states: unclaimed (visible to any
// consumer of the group via Claim), claimed (owned by one consumer, sitting in
// the pending list), or acknowledged (gone for good). A claimed delivery whose
// idle time reaches the reclaim threshold may be transferred to another
// consumer by ReclaimStale. Nothing but Acknowledge removes a delivery, which
// is what makes processing at-least-once.
type TaskQueue interface {
	// Enqueue appends a task. It succeeds even when no consumer exists.
	Enqueue(ctx context.Context, task domain.CheckTask) error

	// Claim returns up to maxCount never-before-claimed deliveries for the
	// consumer, blocking up to block when none are available. This blocking
	// is the pipeline's only idle wait; no sleep is layered on top of it.
	Claim(ctx context.Context, consumer string, maxCount int, block time.Duration) ([]Delivery, error)

	// Acknowledge removes deliveries from the pending list unconditionally.
	// It is called exactly once per delivery, after handling is fully
	// decided, whether that was success, failure, or an intentional skip.
	Acknowledge(ctx context.Context, ids ...string) error

	// ReclaimStale reassigns up to maxTotal deliveries idle for at least
	// minIdle to the consumer, scanning in batches of maxBatch, and returns
	// them for reprocessing.
	ReclaimStale(ctx context.Context, consumer string, minIdle time.Duration, maxBatch, maxTotal int) ([]Delivery, error)

	// PendingInfo reports the group's backlog for the liveness watchdogs.
	PendingInfo(ctx context.Context) (PendingInfo, error)

	Close() error
}
