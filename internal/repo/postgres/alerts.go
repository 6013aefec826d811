package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/statuspulse/statuspulse/internal/domain"
	"github.com/statuspulse/statuspulse/internal/repo"
)

var _ repo.AlertStore = (*Store)(nil)

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*repo.AlertRecord, error) {
	const q = `SELECT last_state, last_sent_at FROM alerts WHERE target_id=$1`
	var r repo.AlertRecord
	r.TargetID = id
	var state string
	var lastSent *time.Time
	err := s.pool.QueryRow(ctx, q, string(id)).Scan(&state, &lastSent)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get alert record: %w", err)
	}
	r.LastState = domain.Status(state)
	r.LastSentAt = lastSent
	return &r, nil
}

func (s *Store) Set(ctx context.Context, id domain.TargetID, state domain.Status, sentAt time.Time) error {
	const q = `
		INSERT INTO alerts (target_id, last_state, last_sent_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (target_id)
		DO UPDATE SET last_state=EXCLUDED.last_state, last_sent_at=EXCLUDED.last_sent_at
	`
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	_, err := s.pool.Exec(ctx, q, string(id), string(state), ts)
	if err != nil {
		return fmt.Errorf("set alert record: %w", err)
	}
	return nil
}
