package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/statuspulse/statuspulse/internal/domain"
)

var _ TaskQueue = (*MemoryQueue)(nil)

var ErrClosed = errors.New("queue closed")

type pendingEntry struct {
	delivery     Delivery
	consumer     string
	lastDelivery time.Time
}

// MemoryQueue is an in-process TaskQueue with the same claim/ack/reclaim
// semantics as the Redis stream. It backs tests and single-node local runs.
type MemoryQueue struct {
	mu      sync.Mutex
	seq     int64
	ready   []Delivery
	pending map[string]*pendingEntry
	order   []string // pending ids in claim order
	notify  chan struct{}
	closed  bool

	// Now is swappable so tests can control idle-time arithmetic.
	Now func() time.Time
}

func NewMemory() *MemoryQueue {
	return &MemoryQueue{
		pending: make(map[string]*pendingEntry),
		notify:  make(chan struct{}),
		Now:     time.Now,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, task domain.CheckTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.seq++
	q.ready = append(q.ready, Delivery{ID: fmt.Sprintf("%d-0", q.seq), Task: task})
	// Wake any blocked claimers.
	close(q.notify)
	q.notify = make(chan struct{})
	return nil
}

func (q *MemoryQueue) Claim(ctx context.Context, consumer string, maxCount int, block time.Duration) ([]Delivery, error) {
	deadline := time.Now().Add(block)
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}
		if len(q.ready) > 0 {
			n := maxCount
			if n > len(q.ready) {
				n = len(q.ready)
			}
			out := make([]Delivery, n)
			copy(out, q.ready[:n])
			q.ready = q.ready[n:]
			now := q.Now()
			for _, d := range out {
				q.pending[d.ID] = &pendingEntry{delivery: d, consumer: consumer, lastDelivery: now}
				q.order = append(q.order, d.ID)
			}
			q.mu.Unlock()
			return out, nil
		}
		ch := q.notify
		q.mu.Unlock()

		wait := time.Until(deadline)
		if block <= 0 || wait <= 0 {
			return nil, nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-ch:
			timer.Stop()
		}
	}
}

func (q *MemoryQueue) Acknowledge(ctx context.Context, ids ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range ids {
		if _, ok := q.pending[id]; !ok {
			continue
		}
		delete(q.pending, id)
		for i, pid := range q.order {
			if pid == id {
				q.order = append(q.order[:i], q.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (q *MemoryQueue) ReclaimStale(ctx context.Context, consumer string, minIdle time.Duration, maxBatch, maxTotal int) ([]Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.Now()
	var out []Delivery
	for _, id := range q.order {
		if len(out) >= maxTotal {
			break
		}
		e := q.pending[id]
		// An entry idle for exactly minIdle is already eligible.
		if now.Sub(e.lastDelivery) >= minIdle {
			e.consumer = consumer
			e.lastDelivery = now
			out = append(out, e.delivery)
		}
	}
	return out, nil
}

func (q *MemoryQueue) PendingInfo(ctx context.Context) (PendingInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	info := PendingInfo{Count: int64(len(q.pending))}
	now := q.Now()
	for _, e := range q.pending {
		if idle := now.Sub(e.lastDelivery); idle > info.OldestIdle {
			info.OldestIdle = idle
		}
	}
	return info, nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.notify)
	}
	return nil
}

// Backlog reports how many enqueued tasks have never been claimed.
func (q *MemoryQueue) Backlog() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}
