package worker

import (
	"sync"
	"time"
)

// Health is the shared mutable state between the consumption loop and the
// watchdog loop: when the last successful store write happened, and when each
// critical condition last made it into the log. Guarded by a mutex so the
// loops never race on it.
type Health struct {
	mu        sync.Mutex
	lastWrite time.Time
	lastLog   map[string]time.Time
}

func NewHealth() *Health {
	return &Health{
		// Treat process start as the last write so a worker that hasn't had
		// work yet doesn't trip the stall watchdog immediately.
		lastWrite: time.Now(),
		lastLog:   make(map[string]time.Time),
	}
}

func (h *Health) MarkWrite() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastWrite = time.Now()
}

func (h *Health) LastWrite() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastWrite
}

// AllowCritical reports whether the named condition may be logged now, and
// if so records the log time. This is what rate-limits the watchdog output.
func (h *Health) AllowCritical(name string, cooldown time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	last, ok := h.lastLog[name]
	if ok && time.Since(last) < cooldown {
		return false
	}
	h.lastLog[name] = time.Now()
	return true
}
