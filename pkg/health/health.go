// Package health runs dependency probes for the liveness and readiness
// endpoints. A down component fails readiness; a degraded one is reported
// but keeps the service in rotation.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// worse orders statuses so the overall report takes the worst component.
func (s Status) worse(o Status) bool {
	rank := map[Status]int{StatusUp: 0, StatusDegraded: 1, StatusDown: 2}
	return rank[s] > rank[o]
}

type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// DefaultTimeout bounds a whole readiness run.
const DefaultTimeout = 5 * time.Second

type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	clock   clock.Clock
	timeout time.Duration
	logger  *slog.Logger
}

func NewChecker() *Checker {
	return NewCheckerWithClock(clock.WallClock)
}

// NewCheckerWithClock is NewChecker with an injectable clock for latency
// and timestamps.
func NewCheckerWithClock(clk clock.Clock) *Checker {
	return &Checker{
		checks:  make(map[string]Check),
		clock:   clk,
		timeout: DefaultTimeout,
		logger:  slog.Default().With("component", "health"),
	}
}

func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run probes every component in parallel.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  c.clock.Now().UTC(),
	}
	var mu sync.Mutex
	var g errgroup.Group
	for name, check := range checks {
		g.Go(func() error {
			start := c.clock.Now()
			result := check(ctx)
			result.Latency = c.clock.Now().Sub(start).Round(time.Millisecond).String()
			mu.Lock()
			defer mu.Unlock()
			report.Components[name] = result
			if result.Status.worse(report.Status) {
				report.Status = result.Status
			}
			return nil
		})
	}
	_ = g.Wait()
	if report.Status != StatusUp {
		c.logger.Warn("health check not passing", "status", report.Status)
	}
	return report
}

// PingCheck reports a failing probe as down when critical and degraded
// otherwise.
func PingCheck(ping func(ctx context.Context) error, critical bool) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			status := StatusDegraded
			if critical {
				status = StatusDown
			}
			return ComponentHealth{Status: status, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// GenerationCheck is degraded while a committed generation is not yet
// visible to searchers.
func GenerationCheck(visible, committed func() uint64, docs func() uint32) Check {
	return func(context.Context) ComponentHealth {
		v, c := visible(), committed()
		msg := fmt.Sprintf("generation %d, %d docs", v, docs())
		if v < c {
			return ComponentHealth{Status: StatusDegraded, Message: fmt.Sprintf("%s, generation %d committed but not visible", msg, c)}
		}
		return ComponentHealth{Status: StatusUp, Message: msg}
	}
}

func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 503 only when a component is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
