package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	searchhandler "github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/handler"
)

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want time.Duration
	}{
		{0, 1},
		{50, 5},
		{90, 9},
		{99, 10},
		{100, 10},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if percentile(nil, 50) != 0 {
		t.Error("percentile(nil) should be zero")
	}
}

func TestRunAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchhandler.SearchRequest
		if r.URL.Path != "/api/v1/search" || json.NewDecoder(r.Body).Decode(&req) != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count":0,"items":[],"cache_hit":true}`))
	}))
	defer srv.Close()

	stats, err := Run(context.Background(), Config{
		BaseURL:     srv.URL,
		Concurrency: 2,
		Duration:    100 * time.Millisecond,
		Requests:    defaultRequests(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.total.Load() == 0 || stats.failed.Load() != 0 {
		t.Fatalf("total = %d failed = %d", stats.total.Load(), stats.failed.Load())
	}
	if stats.cacheHits.Load() != stats.succeeded.Load() {
		t.Errorf("cache hits = %d, succeeded = %d", stats.cacheHits.Load(), stats.succeeded.Load())
	}

	var out bytes.Buffer
	Report(&out, stats, 100*time.Millisecond)
	if !strings.Contains(out.String(), "Cache Hit Rate:  100.00%") || !strings.Contains(out.String(), "200:") {
		t.Errorf("report missing sections:\n%s", out.String())
	}
}
