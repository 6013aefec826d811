package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/statuspulse/statuspulse/internal/domain"
	"github.com/statuspulse/statuspulse/internal/repo"
)

// Store is an in-memory registry + event store + alert store, used by tests
// and local runs without Postgres.
type Store struct {
	mu      sync.RWMutex
	targets map[domain.TargetID]*domain.Target
	events  []domain.UptimeEvent
	alerts  map[domain.TargetID]repo.AlertRecord
	nextID  int64
}

func New() *Store {
	return &Store{
		targets: make(map[domain.TargetID]*domain.Target),
		events:  make([]domain.UptimeEvent, 0, 128),
		alerts:  make(map[domain.TargetID]repo.AlertRecord),
		nextID:  1,
	}
}

// Put registers or replaces a target. The real registry lives outside the
// pipeline; this exists so tests can stand in for it.
func (m *Store) Put(t domain.Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := t
	m.targets[t.ID] = &cp
}

// Remove deletes a target, simulating registry-side deletion.
func (m *Store) Remove(id domain.TargetID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.targets, id)
}

// ---- TargetRegistry ----

func (m *Store) ListActive(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		if t.IsActive {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) GetByID(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

// ---- EventStore ----

func (m *Store) AppendBatch(ctx context.Context, events []domain.UptimeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range events {
		e.ID = m.nextID
		m.nextID++
		if e.IngestedAt.IsZero() {
			e.IngestedAt = time.Now().UTC()
		}
		m.events = append(m.events, e)
	}
	return nil
}

func (m *Store) QueryRecent(ctx context.Context, ids []domain.TargetID, limitPerTarget int) ([]domain.UptimeEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[domain.TargetID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	byTarget := make(map[domain.TargetID][]domain.UptimeEvent)
	for _, e := range m.events {
		if want[e.TargetID] {
			byTarget[e.TargetID] = append(byTarget[e.TargetID], e)
		}
	}

	var out []domain.UptimeEvent
	for _, evs := range byTarget {
		sort.Slice(evs, func(i, j int) bool { return evs[i].CheckedAt.After(evs[j].CheckedAt) })
		if len(evs) > limitPerTarget {
			evs = evs[:limitPerTarget]
		}
		out = append(out, evs...)
	}
	return out, nil
}

func (m *Store) QueryLookback(ctx context.Context, ids []domain.TargetID, window time.Duration) ([]domain.UptimeEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-window)
	want := make(map[domain.TargetID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var out []domain.UptimeEvent
	for _, e := range m.events {
		if want[e.TargetID] && !e.CheckedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Events returns a copy of everything appended so far, for test assertions.
func (m *Store) Events() []domain.UptimeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.UptimeEvent, len(m.events))
	copy(out, m.events)
	return out
}

// ---- AlertStore ----

func (m *Store) Get(ctx context.Context, id domain.TargetID) (*repo.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.alerts[id]
	if !ok {
		return nil, nil
	}
	cp := rec
	return &cp, nil
}

func (m *Store) Set(ctx context.Context, id domain.TargetID, state domain.Status, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := repo.AlertRecord{TargetID: id, LastState: state}
	if !sentAt.IsZero() {
		ts := sentAt
		rec.LastSentAt = &ts
	}
	m.alerts[id] = rec
	return nil
}
