package aggregate

import (
	"sort"
	"time"

	"github.com/statuspulse/statuspulse/internal/domain"
)

const fullDayMinutes = 1440

// DayCategory is the presentation class of one calendar day.
type DayCategory string

const (
	DayNoData  DayCategory = "no-data"
	DayUp      DayCategory = "up"      // 100% uptime
	DayDown    DayCategory = "down"    // 0% uptime
	DayPartial DayCategory = "partial" // anything in between
)

// DaySlot is one calendar day in the reporting timezone.
type DaySlot struct {
	Day             time.Time            `json:"day"` // midnight in the reporting tz
	Events          []domain.UptimeEvent `json:"events,omitempty"`
	DowntimeMinutes float64              `json:"downtime_minutes"`
	UptimePct       float64              `json:"uptime_pct"`
	Category        DayCategory          `json:"category"`
}

// BuildDayView buckets events into dayCount calendar days of the reporting
// timezone, oldest first, anchored at the most recent event's day. Downtime
// within a day accumulates from each DOWN observation until the next UP
// observation, or until the day closes if the target is still down then.
// Days with no events are reported as no-data, never skipped.
//
// Timestamps arrive in UTC; midnight resolution goes through the tz database
// via loc, so DST transitions land on the real local midnight.
func BuildDayView(events []domain.UptimeEvent, dayCount int, loc *time.Location) []DaySlot {
	if dayCount <= 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	anchor := time.Now().In(loc)
	if len(events) > 0 {
		latest := events[0].CheckedAt
		for _, e := range events[1:] {
			if e.CheckedAt.After(latest) {
				latest = e.CheckedAt
			}
		}
		anchor = latest.In(loc)
	}

	type dayKey struct {
		y int
		m time.Month
		d int
	}
	keyOf := func(t time.Time) dayKey {
		y, m, d := t.In(loc).Date()
		return dayKey{y, m, d}
	}

	slots := make([]DaySlot, dayCount)
	index := make(map[dayKey]int, dayCount)
	ay, am, ad := anchor.Date()
	for j := 0; j < dayCount; j++ {
		// time.Date normalizes the day offset, which keeps month ends and
		// DST shifts correct.
		midnight := time.Date(ay, am, ad-(dayCount-1-j), 0, 0, 0, 0, loc)
		slots[j] = DaySlot{Day: midnight, UptimePct: 100, Category: DayNoData}
		index[keyOf(midnight)] = j
	}

	for _, e := range events {
		if j, ok := index[keyOf(e.CheckedAt)]; ok {
			slots[j].Events = append(slots[j].Events, e)
		}
	}

	for j := range slots {
		s := &slots[j]
		if len(s.Events) == 0 {
			continue
		}
		sort.Slice(s.Events, func(a, b int) bool {
			return s.Events[a].CheckedAt.Before(s.Events[b].CheckedAt)
		})

		y, m, d := s.Day.Date()
		dayEnd := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

		var down time.Duration
		var downSince *time.Time
		for i := range s.Events {
			e := &s.Events[i]
			switch {
			case e.Status == domain.StatusDown && downSince == nil:
				t := e.CheckedAt
				downSince = &t
			case e.Status == domain.StatusUp && downSince != nil:
				down += e.CheckedAt.Sub(*downSince)
				downSince = nil
			}
		}
		if downSince != nil {
			down += dayEnd.Sub(*downSince)
		}

		minutes := down.Minutes()
		if minutes < 0 {
			minutes = 0
		}
		if minutes > fullDayMinutes {
			minutes = fullDayMinutes
		}
		s.DowntimeMinutes = minutes
		s.UptimePct = (fullDayMinutes - minutes) / fullDayMinutes * 100

		switch {
		case s.UptimePct >= 100:
			s.Category = DayUp
		case s.UptimePct <= 0:
			s.Category = DayDown
		default:
			s.Category = DayPartial
		}
	}
	return slots
}
