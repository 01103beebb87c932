package host

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/containeros/appbridge/internal/infrastructure/resilience"
)

// MonitorClient delivers relayed events to the per-user session monitor.
// Delivery is best-effort: calls fail fast behind a circuit breaker and
// callers are expected to drop, not retry.
type MonitorClient struct {
	http    *resty.Client
	breaker *resilience.Breaker
}

// NewMonitorClient creates a monitor client for the given base URL.
func NewMonitorClient(baseURL string) *MonitorClient {
	return &MonitorClient{
		http: newRestyClient(baseURL).SetTimeout(3 * time.Second),
		breaker: resilience.New("monitor", resilience.Settings{
			MaxRequests: 2,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// PackageStateChanged forwards one package lifecycle transition.
func (c *MonitorClient) PackageStateChanged(ctx context.Context, code int, pkg string, uid int) error {
	return c.breaker.Execute(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(map[string]interface{}{
				"state":        code,
				"package_name": pkg,
				"uid":          uid,
			}).
			Post("/v1/package-state")
		if err != nil {
			return fmt.Errorf("monitor package state: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("monitor package state: status %d", resp.StatusCode())
		}
		return nil
	})
}

// UserUnlocked signals that a user session is ready.
func (c *MonitorClient) UserUnlocked(ctx context.Context, uid int) error {
	return c.breaker.Execute(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(map[string]int{"uid": uid}).
			Post("/v1/user-unlocked")
		if err != nil {
			return fmt.Errorf("monitor user unlocked: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("monitor user unlocked: status %d", resp.StatusCode())
		}
		return nil
	})
}
