package repo

import (
	"context"
	"time"

	"github.com/statuspulse/statuspulse/internal/domain"
)

// AlertRecord holds the last-known state and the last time a notification was
// sent for a target. LastState is the last UP/DOWN observed, LastSentAt feeds
// the DOWN-repeat cooldown.
type AlertRecord struct {
	TargetID   domain.TargetID
	LastState  domain.Status
	LastSentAt *time.Time
}

// AlertStore persists alert state between alerter passes.
type AlertStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, id domain.TargetID) (*AlertRecord, error)
	// Set upserts the record. A zero sentAt is stored as NULL.
	Set(ctx context.Context, id domain.TargetID, state domain.Status, sentAt time.Time) error
}
