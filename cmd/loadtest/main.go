// Command loadtest drives POST /api/v1/search with a fixed mix of queries
// and facet requests and prints throughput, latency percentiles, the cache
// hit rate and the status code breakdown.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"

	searchhandler "github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/handler"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Requests    []searchhandler.SearchRequest
}

type Stats struct {
	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 100000),
		statuses:  make(map[int]int64),
	}
}

func (s *Stats) Record(took time.Duration, status int, cacheHit bool, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.succeeded.Add(1)
	} else {
		s.failed.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, took)
	s.statuses[status]++
	s.mu.Unlock()
}

// defaultRequests matches configs/schema.yaml.
func defaultRequests() []searchhandler.SearchRequest {
	category := map[string][]string{"facets": {"/category"}}
	return []searchhandler.SearchRequest{
		{Query: "sea", Facets: category},
		{Query: "old man", NHits: 20},
		{Query: "whale", Fields: []string{"title"}},
		{Query: "mice and men", Facets: category},
		{Query: "sea", Filters: map[string][]string{"facets": {"/category/category1"}}},
		{Query: "", Filters: map[string][]string{"facets": {"/author"}}, Facets: map[string][]string{"facets": {"/author"}}},
		{Query: "monster laboratory"},
		{Query: "fisherman boat", NHits: 5},
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of searchd")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Requests:    defaultRequests(),
	}

	fmt.Println("=== facetsearch load test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Requests:    %d unique\n\n", len(cfg.Requests))

	stats, err := Run(context.Background(), cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	Report(os.Stdout, stats, cfg.Duration)
	if stats.total.Load() == 0 {
		fmt.Println("\nWARNING: no requests completed. Is searchd running?")
		os.Exit(1)
	}
}

// Run sends requests until cfg.Duration elapses or ctx is cancelled.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	bodies := make([][]byte, len(cfg.Requests))
	for i, r := range cfg.Requests {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encoding request %d: %w", i, err)
		}
		bodies[i] = b
	}
	if len(bodies) == 0 {
		return nil, fmt.Errorf("no requests to send")
	}

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	stats := NewStats()
	url := cfg.BaseURL + "/api/v1/search"
	var wg sync.WaitGroup
	for w := range cfg.Concurrency {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				body := bodies[next%len(bodies)]
				next++
				start := time.Now()
				status, hit, err := search(ctx, client, url, body)
				if ctx.Err() != nil {
					return
				}
				stats.Record(time.Since(start), status, hit, err)
			}
		}(w)
	}
	wg.Wait()
	return stats, nil
}

func search(ctx context.Context, client *http.Client, url string, body []byte) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	var out struct {
		CacheHit bool `json:"cache_hit"`
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return resp.StatusCode, false, fmt.Errorf("decoding response: %w", err)
		}
	}
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, out.CacheHit, nil
}

func Report(w io.Writer, stats *Stats, duration time.Duration) {
	total := stats.total.Load()
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", stats.succeeded.Load())
	fmt.Fprintf(w, "Errors:          %d\n", stats.failed.Load())
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(stats.failed.Load())/float64(total)*100)
		fmt.Fprintf(w, "Cache Hit Rate:  %.2f%%\n", float64(stats.cacheHits.Load())/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	codes := make([]int, 0, len(stats.statuses))
	for code := range stats.statuses {
		codes = append(codes, code)
	}
	statuses := make(map[int]int64, len(stats.statuses))
	for k, v := range stats.statuses {
		statuses[k] = v
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		var sq float64
		for _, l := range latencies {
			d := float64(l - avg)
			sq += d * d
		}

		fmt.Fprintln(w, "\n=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(w, "P%-2.0f:    %s\n", p, percentile(latencies, p))
		}
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
		fmt.Fprintf(w, "StdDev: %s\n", time.Duration(math.Sqrt(sq/float64(len(latencies)))))
	}

	fmt.Fprintln(w, "\n=== Status Codes ===")
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, statuses[code])
	}
}

// percentile expects sorted input and uses the nearest-rank method.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
