// Package handler serves search, stored-document lookup and index stats
// over HTTP.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Index is implemented by *indexer.Index.
type Index interface {
	Searcher() *executor.Searcher
	ParseQuery(text string, fields []string, filters map[string][]string) (parser.Query, error)
	Schema() *schema.Schema
	CommittedGeneration() uint64
	StoreName() string
}

type SearchRequest struct {
	Query   string              `json:"query"`
	Fields  []string            `json:"fields"`
	Filters map[string][]string `json:"filters"`
	NHits   int                 `json:"nhits"`
	Facets  map[string][]string `json:"facets"`
}

type SearchResponse struct {
	*executor.Result
	Generation uint64 `json:"generation"`
	CacheHit   bool   `json:"cache_hit"`
	TookMs     int64  `json:"took_ms"`
}

type Options struct {
	DefaultLimit int
	MaxResults   int
	Timeout      time.Duration
}

type Handler struct {
	index   Index
	cache   *cache.QueryCache
	metrics *metrics.Metrics
	opts    Options
	logger  *slog.Logger
}

// New builds a handler. queryCache and m may be nil.
func New(ix Index, queryCache *cache.QueryCache, m *metrics.Metrics, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	return &Handler{
		index:   ix,
		cache:   queryCache,
		metrics: m,
		opts:    opts,
		logger:  slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	nhits := req.NHits
	switch {
	case nhits < 0:
		h.searchFailed(w, log, req.Query, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "nhits must not be negative"))
		return
	case nhits == 0:
		nhits = h.opts.DefaultLimit
	case nhits > h.opts.MaxResults:
		nhits = h.opts.MaxResults
	}
	fields := req.Fields
	if len(fields) == 0 {
		fields = defaultFields(h.index.Schema())
	}

	q, err := h.index.ParseQuery(req.Query, fields, req.Filters)
	if err != nil {
		h.searchFailed(w, log, req.Query, err)
		return
	}
	searcher := h.index.Searcher()
	compute := func() (*executor.Result, error) {
		sctx := ctx
		if h.opts.Timeout > 0 {
			var cancel context.CancelFunc
			sctx, cancel = context.WithTimeout(ctx, h.opts.Timeout)
			defer cancel()
		}
		return searcher.SearchContext(sctx, q, nhits, req.Facets)
	}

	var (
		result   *executor.Result
		cacheHit bool
	)
	cacheStatus := "disabled"
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, cache.Request{
			Generation: searcher.Generation(),
			Query:      q,
			NHits:      nhits,
			Facets:     req.Facets,
		}, compute)
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = compute()
	}
	if err != nil {
		h.searchFailed(w, log, req.Query, err)
		return
	}

	took := time.Since(start)
	if h.metrics != nil {
		resultType := "hits"
		if result.Count == 0 {
			resultType = "no_hits"
		}
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(took.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(result.Count))
	}
	log.Info("search completed",
		"query", q.String(),
		"count", result.Count,
		"returned", len(result.Items),
		"generation", searcher.Generation(),
		"cache", cacheStatus,
		"took", took,
	)
	h.writeJSON(w, http.StatusOK, SearchResponse{
		Result:     result,
		Generation: searcher.Generation(),
		CacheHit:   cacheHit,
		TookMs:     took.Milliseconds(),
	})
}

func (h *Handler) searchFailed(w http.ResponseWriter, log *slog.Logger, query string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
	}
	if status >= http.StatusInternalServerError {
		log.Error("search failed", "query", query, "error", err)
		h.writeError(w, status, "search failed")
		return
	}
	log.Debug("search rejected", "query", query, "error", err)
	h.writeError(w, status, err.Error())
}

// defaultFields are the indexed text fields, searched when a request names
// none.
func defaultFields(s *schema.Schema) []string {
	var out []string
	for _, f := range s.Fields() {
		if f.Type == schema.TypeText && f.Indexed {
			out = append(out, f.Name)
		}
	}
	return out
}

// Document returns the stored fields of one document address.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid document address %q", r.PathValue("id")))
		return
	}
	doc, err := h.index.Searcher().Doc(uint32(id))
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"doc": id, "fields": doc})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	searcher := h.index.Searcher()
	stats := map[string]any{
		"generation":           searcher.Generation(),
		"committed_generation": h.index.CommittedGeneration(),
		"num_docs":             searcher.NumDocs(),
		"segments":             searcher.NumSegments(),
		"store":                h.index.StoreName(),
		"schema":               h.index.Schema(),
	}
	if h.cache != nil {
		hits, misses := h.cache.Stats()
		var hitRate float64
		if total := hits + misses; total > 0 {
			hitRate = float64(hits) / float64(total) * 100
		}
		stats["cache"] = map[string]any{
			"hits":     hits,
			"misses":   misses,
			"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		}
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
