package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/statuspulse/statuspulse/internal/domain"
	"github.com/statuspulse/statuspulse/internal/repo"
)

var _ repo.TargetRegistry = (*Store)(nil)
var _ repo.EventStore = (*Store)(nil)

// appendChunkSize bounds a single pgx batch; callers may hand us batches of
// a few thousand events and we split them here.
const appendChunkSize = 500

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ---- TargetRegistry ----

func (s *Store) ListActive(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, url
		   FROM targets
		  WHERE is_active
		  ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active targets: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		var (
			id  string
			url string
		)
		if err := rows.Scan(&id, &url); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, domain.Target{ID: domain.TargetID(id), URL: url, IsActive: true})
	}
	return out, rows.Err()
}

func (s *Store) GetByID(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	const q = `SELECT id, url, is_active FROM targets WHERE id=$1`
	var t domain.Target
	var rawID string
	err := s.pool.QueryRow(ctx, q, string(id)).Scan(&rawID, &t.URL, &t.IsActive)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get target: %w", err)
	}
	t.ID = domain.TargetID(rawID)
	return &t, nil
}

// ---- EventStore ----

func (s *Store) AppendBatch(ctx context.Context, events []domain.UptimeEvent) error {
	for start := 0; start < len(events); start += appendChunkSize {
		end := start + appendChunkSize
		if end > len(events) {
			end = len(events)
		}
		if err := s.appendChunk(ctx, events[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) appendChunk(ctx context.Context, events []domain.UptimeEvent) error {
	b := &pgx.Batch{}
	for _, e := range events {
		ingested := e.IngestedAt
		if ingested.IsZero() {
			ingested = time.Now().UTC()
		}
		b.Queue(
			`INSERT INTO uptime_events
			   (target_id, region, status, response_time_ms, http_status, checked_at, ingested_at)
			 VALUES
			   ($1, $2, $3, $4, $5, $6, $7)`,
			string(e.TargetID), e.Region, string(e.Status),
			e.ResponseTimeMS, e.HTTPStatus, e.CheckedAt, ingested,
		)
	}
	br := s.pool.SendBatch(ctx, b)
	defer br.Close()
	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return nil
}

func (s *Store) QueryRecent(ctx context.Context, ids []domain.TargetID, limitPerTarget int) ([]domain.UptimeEvent, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, target_id, region, status, response_time_ms, http_status, checked_at, ingested_at
  FROM (
    SELECT e.*,
           row_number() OVER (PARTITION BY e.target_id ORDER BY e.checked_at DESC) AS rn
      FROM uptime_events e
     WHERE e.target_id = ANY($1)
  ) ranked
 WHERE rn <= $2
 ORDER BY checked_at DESC`,
		targetIDStrings(ids), limitPerTarget)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) QueryLookback(ctx context.Context, ids []domain.TargetID, window time.Duration) ([]domain.UptimeEvent, error) {
	cutoff := time.Now().UTC().Add(-window)
	rows, err := s.pool.Query(ctx, `
SELECT id, target_id, region, status, response_time_ms, http_status, checked_at, ingested_at
  FROM uptime_events
 WHERE target_id = ANY($1)
   AND checked_at >= $2
 ORDER BY checked_at ASC`,
		targetIDStrings(ids), cutoff)
	if err != nil {
		return nil, fmt.Errorf("query lookback events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]domain.UptimeEvent, error) {
	var out []domain.UptimeEvent
	for rows.Next() {
		var (
			e      domain.UptimeEvent
			id     string
			status string
		)
		if err := rows.Scan(&e.ID, &id, &e.Region, &status,
			&e.ResponseTimeMS, &e.HTTPStatus, &e.CheckedAt, &e.IngestedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.TargetID = domain.TargetID(id)
		e.Status = domain.Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func targetIDStrings(ids []domain.TargetID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
