// Package cache memoises search results in Redis. Keys include the visible
// generation, so a reload makes every older entry unreachable and entries
// simply age out through their TTL. Backend calls go through a circuit
// breaker; while it is open every lookup is a miss and nothing is written.
package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/resilience"
)

const keyPrefix = "fts:search:"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Backend is the subset of the Redis client the cache needs. A missing key
// is reported with a Redis nil error.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Request identifies one search.
type Request struct {
	Generation uint64
	Query      parser.Query
	NHits      int
	Facets     map[string][]string
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.Breaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

type Option func(*QueryCache)

// WithBreaker replaces the default breaker (5 failures, 30s cooldown).
func WithBreaker(cfg resilience.BreakerConfig) Option {
	return func(c *QueryCache) {
		c.breaker = c.newBreaker(cfg)
	}
}

func New(backend Backend, ttl time.Duration, m *metrics.Metrics, opts ...Option) *QueryCache {
	c := &QueryCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	c.breaker = c.newBreaker(resilience.BreakerConfig{})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *QueryCache) newBreaker(cfg resilience.BreakerConfig) *resilience.Breaker {
	next := cfg.OnStateChange
	cfg.OnStateChange = func(from, to resilience.State) {
		if c.metrics != nil {
			open := 0.0
			if to == resilience.StateOpen {
				open = 1
			}
			c.metrics.CacheBreakerOpen.Set(open)
		}
		if next != nil {
			next(from, to)
		}
	}
	return resilience.NewBreaker("query-cache", cfg)
}

// Get returns the cached result for req. Backend failures count as misses.
func (c *QueryCache) Get(ctx context.Context, req Request) (*executor.Result, bool) {
	key := Key(req)
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			data = nil
			return nil
		}
		return err
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		c.miss()
		return nil, false
	case err != nil:
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	case data == nil:
		c.miss()
		return nil, false
	}
	var result executor.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, req Request, result *executor.Result) {
	key := Key(req)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs compute once per key, even
// under concurrent identical requests. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	req Request,
	compute func() (*executor.Result, error),
) (*executor.Result, bool, error) {
	if result, ok := c.Get(ctx, req); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(Key(req), func() (any, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, req, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.Result), false, nil
}

// BreakerState reports whether the backend is currently being bypassed.
func (c *QueryCache) BreakerState() resilience.State {
	return c.breaker.State()
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Key hashes the generation, the rendered query, the hit limit and the
// facet request. Facet fields and prefixes are sorted first.
func Key(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "g=%d|q=%s|n=%d", req.Generation, req.Query.String(), req.NHits)
	fields := make([]string, 0, len(req.Facets))
	for f := range req.Facets {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		prefixes := append([]string(nil), req.Facets[f]...)
		sort.Strings(prefixes)
		fmt.Fprintf(&b, "|f=%s:%s", f, strings.Join(prefixes, ","))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}
