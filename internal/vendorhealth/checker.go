// Package vendorhealth implements periodic liveness probing of the four
// configured vendor base URLs (UCDP/SSR, Flood, Title, HOI): a HEAD (GET
// fallback) against each vendor's baseUrl on a fixed interval, flagging a
// vendor degraded after FailThreshold consecutive probe failures and
// recovered on its next success (SPEC_FULL.md supplemented-features:
// "periodically HEADs each configured vendor baseUrl and flags a vendor
// degraded after FailThreshold consecutive probe failures, emitting an
// audit event").
//
// Grounded directly on internal/health.HealthChecker: same
// Config{CheckInterval, ProbeTimeout, FailThreshold}, same bounded-
// concurrency CheckAll loop, same HEAD-then-GET probeEndpoint, same
// per-target consecutive-failure counter with exactly-at-threshold
// transition — generalized from "probe a registered agent's endpoint"
// to "probe a configured vendor's base URL", and from a webhook/metrics
// callback pair to a single audit.Sink + metrics call.
package vendorhealth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/audit"
	"github.com/cschwartz85032/loanserve-sub007/internal/metrics"
)

// Config holds vendor health probe configuration (§4.10 "vendor health
// monitoring").
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Target is one vendor to probe.
type Target struct {
	Vendor  string // e.g. "UCDP", "FLOOD", "TITLE", "HOI"
	BaseURL string
}

// Checker runs periodic probes against a fixed set of vendor targets.
type Checker struct {
	targets    []Target
	httpClient *http.Client
	failCounts map[string]int
	mu         sync.Mutex
	cfg        Config
	audit      audit.Sink
	logger     *zap.Logger
}

// New creates a Checker over targets. audit may be nil in tests that do
// not exercise the degraded-event write path.
func New(targets []Target, cfg Config, sink audit.Sink, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	return &Checker{
		targets:    targets,
		httpClient: &http.Client{Timeout: cfg.ProbeTimeout},
		failCounts: make(map[string]int),
		cfg:        cfg,
		audit:      sink,
		logger:     logger,
	}
}

// Start runs the probe loop on cfg.CheckInterval until quit is closed.
func (c *Checker) Start(ctx context.Context, quit <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, c.cfg.CheckInterval-time.Second)
			c.CheckAll(probeCtx)
			cancel()
		case <-quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll probes every target concurrently and updates each vendor's
// consecutive-failure state and degraded gauge.
func (c *Checker) CheckAll(ctx context.Context) {
	sem := make(chan struct{}, 10)
	var wg sync.WaitGroup

	for _, target := range c.targets {
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			success := c.probeEndpoint(ctx, t.BaseURL)

			c.mu.Lock()
			prevCount := c.failCounts[t.Vendor]
			if success {
				c.failCounts[t.Vendor] = 0
			} else {
				c.failCounts[t.Vendor]++
			}
			count := c.failCounts[t.Vendor]
			c.mu.Unlock()

			switch {
			case success && prevCount >= c.cfg.FailThreshold:
				metrics.SetVendorDegraded(t.Vendor, false)
				if c.logger != nil {
					c.logger.Info("vendorhealth: recovered", zap.String("vendor", t.Vendor))
				}
			case success:
				metrics.SetVendorDegraded(t.Vendor, false)
			case count == c.cfg.FailThreshold:
				metrics.SetVendorDegraded(t.Vendor, true)
				if c.logger != nil {
					c.logger.Warn("vendorhealth: degraded", zap.String("vendor", t.Vendor), zap.Int("fail_count", count))
				}
				if c.audit != nil {
					c.audit.Emit(ctx, "system", audit.EventVendorDegraded, "system", "vendorhealth", "urn:vendor:"+t.Vendor, map[string]any{
						"vendor":     t.Vendor,
						"base_url":   t.BaseURL,
						"fail_count": count,
					})
				}
			}
		}(target)
	}

	wg.Wait()
}

// probeEndpoint attempts HEAD then GET against baseURL, returning true if
// either returns a 2xx response.
func (c *Checker) probeEndpoint(ctx context.Context, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
	if err == nil {
		if resp, err := c.httpClient.Do(req); err == nil {
			resp.Body.Close() //nolint:errcheck
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return true
			}
		}
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close() //nolint:errcheck
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
