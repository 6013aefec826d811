// Package aggregate turns the raw, unordered event stream for one target into
// fixed-shape time-bucketed views. Everything here is a pure function of its
// inputs: no I/O, no caching, no hidden wall-clock reads once at least one
// event exists.
package aggregate

import (
	"time"

	"github.com/statuspulse/statuspulse/internal/domain"
)

// CheckSlot is one fixed-width bucket in the per-check strip. A nil Event
// means "no data for this slot", which renders differently from DOWN.
type CheckSlot struct {
	Start time.Time           `json:"start"`
	End   time.Time           `json:"end"`
	Event *domain.UptimeEvent `json:"event,omitempty"`
}

// BuildCheckView buckets events into slotCount windows of the given interval,
// oldest first. The newest bucket is anchored to the most recent event's
// check time, not to "now", so bucket boundaries stay stable across refetches
// no matter the client-server clock skew or polling jitter.
//
// Each bucket keeps at most one event: the one with the latest check time
// that satisfies start <= checkedAt < end. Events outside the strip are
// dropped. Empty input still yields slotCount empty buckets.
func BuildCheckView(events []domain.UptimeEvent, slotCount int, interval time.Duration) []CheckSlot {
	if slotCount <= 0 || interval <= 0 {
		return nil
	}

	// Empty input anchors to now; the strip is all-empty either way.
	anchor := time.Now().UTC()
	if len(events) > 0 {
		anchor = events[0].CheckedAt
		for _, e := range events[1:] {
			if e.CheckedAt.After(anchor) {
				anchor = e.CheckedAt
			}
		}
	}

	// End of the newest bucket: the interval boundary just past the anchor.
	newestEnd := anchor.Truncate(interval).Add(interval)

	slots := make([]CheckSlot, slotCount)
	for j := range slots {
		end := newestEnd.Add(-time.Duration(slotCount-1-j) * interval)
		slots[j] = CheckSlot{Start: end.Add(-interval), End: end}
	}

	for i := range events {
		e := &events[i]
		offset := newestEnd.Sub(e.CheckedAt)
		if offset <= 0 || offset > time.Duration(slotCount)*interval {
			continue
		}
		// Distance from the newest bucket; an event sitting exactly on a
		// boundary belongs to the bucket that starts there.
		k := int(offset / interval)
		if offset%interval == 0 {
			k--
		}
		j := slotCount - 1 - k
		if cur := slots[j].Event; cur == nil || e.CheckedAt.After(cur.CheckedAt) {
			slots[j].Event = e
		}
	}
	return slots
}
