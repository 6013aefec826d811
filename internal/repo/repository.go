package repo

import (
	"context"
	"time"

	"github.com/statuspulse/statuspulse/internal/domain"
)

// Ports (interfaces); swap in any DB adapter later.

// TargetRegistry is the authoritative list of monitored targets. The pipeline
// reads it fresh on every publish cycle and again per consumed delivery, so a
// target paused or deleted mid-flight is never probed.
type TargetRegistry interface {
	ListActive(ctx context.Context) ([]domain.Target, error)
	// GetByID returns nil, nil for an unknown id.
	GetByID(ctx context.Context, id domain.TargetID) (*domain.Target, error)
}

// EventStore is the append-only sink for check results. Implementations must
// accept batches up to a few thousand events; chunking, if needed, happens
// inside the adapter, not at the call site.
type EventStore interface {
	AppendBatch(ctx context.Context, events []domain.UptimeEvent) error
	// QueryRecent returns up to limitPerTarget newest events per target,
	// newest first.
	QueryRecent(ctx context.Context, ids []domain.TargetID, limitPerTarget int) ([]domain.UptimeEvent, error)
	// QueryLookback returns every event for the targets whose checked_at
	// falls inside the trailing window.
	QueryLookback(ctx context.Context, ids []domain.TargetID, window time.Duration) ([]domain.UptimeEvent, error)
}
