package probe

import (
	"context"

	"github.com/statuspulse/statuspulse/internal/domain"
)

// Outcome is the unified result of a single probe.
//
// StatusCode is 0 for transport-level failures (timeout, DNS, TLS, refused);
// ResponseTimeMS is measured regardless of how the probe is classified.
type Outcome struct {
	Status         domain.Status
	StatusCode     int
	ResponseTimeMS float64
	Reason         string
}

// Checker performs a single reachability check for a target URL.
type Checker interface {
	Check(ctx context.Context, url string) Outcome
}

// Classify maps an HTTP status code to UP/DOWN. A response is a sign of life
// unless the server itself is failing, so anything below 500 counts as UP.
// The mapping depends on nothing but the code.
func Classify(statusCode int) domain.Status {
	if statusCode < 500 {
		return domain.StatusUp
	}
	return domain.StatusDown
}
