package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/statuspulse/statuspulse/internal/domain"
)

const maxRedirects = 5

type HTTPChecker struct {
	Client *http.Client
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPChecker{
		Client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) Outcome {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Outcome{Status: domain.StatusDown, Reason: err.Error()}
	}

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		// Timeouts, DNS, TLS, refused connections: ordinary DOWNs, not errors.
		return Outcome{Status: domain.StatusDown, ResponseTimeMS: latency, Reason: err.Error()}
	}
	defer resp.Body.Close()

	return Outcome{
		Status:         Classify(resp.StatusCode),
		StatusCode:     resp.StatusCode,
		ResponseTimeMS: latency,
		Reason:         resp.Status,
	}
}
