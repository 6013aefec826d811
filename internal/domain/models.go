package domain

type TargetID string

// Target is owned by the external registry; the pipeline only reads it,
// once at dispatch and once at consumption, so a target deactivated
// mid-flight is never probed.
type Target struct {
	ID       TargetID `json:"id"`
	URL      string   `json:"url"`
	IsActive bool     `json:"is_active"`
}

// Status classifies the outcome of a single reachability probe.
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

// CheckTask is the unit of work placed on the queue. It carries no identity
// of its own; duplicate tasks for the same target are harmless because each
// consumption independently produces one event.
type CheckTask struct {
	TargetID TargetID `json:"target_id"`
	URL      string   `json:"url"`
}
