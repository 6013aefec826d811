package domain

import "time"

// UptimeEvent is one immutable check result. CheckedAt is when the probe ran;
// IngestedAt is when the row was durably written; the two diverge under
// backpressure and both are kept.
type UptimeEvent struct {
	ID             int64     `json:"id,omitempty"`
	TargetID       TargetID  `json:"target_id"`
	Region         string    `json:"region"`
	Status         Status    `json:"status"`
	ResponseTimeMS *float64  `json:"response_time_ms,omitempty"`
	HTTPStatus     *int      `json:"http_status,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
	IngestedAt     time.Time `json:"ingested_at"`
}

// Up reports whether the event recorded a reachable target.
func (e *UptimeEvent) Up() bool { return e.Status == StatusUp }
