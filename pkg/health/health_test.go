package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
)

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("refused") }

func TestRunWorstStatusWins(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{"all up", map[string]Check{
			"index": PingCheck(up, true),
		}, StatusUp},
		{"degraded", map[string]Check{
			"index": PingCheck(up, true),
			"cache": PingCheck(down, false),
		}, StatusDegraded},
		{"down", map[string]Check{
			"cache": PingCheck(down, false),
			"store": PingCheck(down, true),
		}, StatusDown},
		{"empty", map[string]Check{}, StatusUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("Status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.checks) {
				t.Errorf("Components = %v", report.Components)
			}
		})
	}
}

func TestRunUsesClock(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCheckerWithClock(testclock.NewClock(now))
	c.Register("index", PingCheck(up, true))
	report := c.Run(context.Background())
	if !report.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", report.Timestamp, now)
	}
	if got := report.Components["index"].Latency; got != "0s" {
		t.Errorf("Latency = %q, want 0s", got)
	}
}

func TestGenerationCheck(t *testing.T) {
	docs := func() uint32 { return 4 }
	tests := []struct {
		name               string
		visible, committed uint64
		want               Status
	}{
		{"caught up", 3, 3, StatusUp},
		{"reload pending", 2, 3, StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := GenerationCheck(
				func() uint64 { return tt.visible },
				func() uint64 { return tt.committed },
				docs,
			)
			got := check(context.Background())
			if got.Status != tt.want || !strings.Contains(got.Message, "4 docs") {
				t.Errorf("check = %+v, want status %s", got, tt.want)
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name     string
		critical bool
		want     int
	}{
		{"critical failure", true, http.StatusServiceUnavailable},
		{"optional failure", false, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.Register("dep", PingCheck(down, tt.critical))
			rec := httptest.NewRecorder()
			c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if !strings.Contains(rec.Body.String(), `"refused"`) {
				t.Errorf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "alive") {
		t.Errorf("live = %d %s", rec.Code, rec.Body.String())
	}
}
