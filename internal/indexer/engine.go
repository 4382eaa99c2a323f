// Package indexer ties the schema, the analyzers and the durable store into
// an Index. Writers buffer documents and commit them as immutable segments;
// Reload publishes the latest commit to new Searchers.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/metrics"
)

// Index owns the committed and the visible generation. Both are swapped
// atomically, so readers never see a partial commit.
type Index struct {
	schema    *schema.Schema
	analyzers *tokenizer.Registry
	store     store.Store
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// commitMu serialises commits and reloads against each other.
	commitMu  sync.Mutex
	committed atomic.Pointer[index.Generation]
	visible   atomic.Pointer[index.Generation]
}

type Option func(*Index)

// WithStore persists commits to st. The default is an in-memory store.
func WithStore(st store.Store) Option {
	return func(ix *Index) { ix.store = st }
}

func WithAnalyzers(r *tokenizer.Registry) Option {
	return func(ix *Index) { ix.analyzers = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(ix *Index) { ix.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(ix *Index) { ix.logger = l }
}

// New creates an empty index. Every indexed text field must name a
// registered analyzer.
func New(s *schema.Schema, opts ...Option) (*Index, error) {
	ix := &Index{
		schema:    s,
		analyzers: tokenizer.NewRegistry(),
		logger:    slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.store == nil {
		ix.store = store.NewMemory()
	}
	if _, err := index.NewSegmentBuilder(s, ix.analyzers, 0); err != nil {
		return nil, err
	}
	empty := index.NewGeneration(0, nil)
	ix.committed.Store(empty)
	ix.visible.Store(empty)
	return ix, nil
}

// Open creates an index over st and restores every segment it holds. The
// restored state is both committed and visible.
func Open(ctx context.Context, s *schema.Schema, st store.Store, opts ...Option) (*Index, error) {
	ix, err := New(s, append(opts, WithStore(st))...)
	if err != nil {
		return nil, err
	}
	segs, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading segments from %s store: %w", st.Name(), err)
	}
	var (
		next uint32
		gen  uint64
		live []*index.Segment
	)
	for _, seg := range segs {
		if seg.BaseDoc() != next {
			return nil, fmt.Errorf("%w: segment %d starts at doc %d, expected %d",
				apperrors.ErrInternal, seg.Generation(), seg.BaseDoc(), next)
		}
		if seg.Generation() <= gen {
			return nil, fmt.Errorf("%w: segment generation %d out of order", apperrors.ErrInternal, seg.Generation())
		}
		next = seg.MaxDoc()
		gen = seg.Generation()
		if seg.NumDocs() > 0 {
			live = append(live, seg)
		}
	}
	restored := index.NewGeneration(gen, live)
	ix.committed.Store(restored)
	ix.visible.Store(restored)
	ix.observeVisible(restored)
	ix.logger.Info("index opened",
		"store", st.Name(),
		"generation", gen,
		"segments", len(live),
		"docs", restored.NumDocs(),
	)
	return ix, nil
}

// Writer returns a writer whose first document id follows the last
// committed one. Only one writer should commit at a time.
func (ix *Index) Writer() (*Writer, error) {
	committed := ix.committed.Load()
	builder, err := index.NewSegmentBuilder(ix.schema, ix.analyzers, committed.NumDocs())
	if err != nil {
		return nil, err
	}
	return &Writer{
		ix:      ix,
		builder: builder,
		nextDoc: committed.NumDocs(),
		logger:  ix.logger.With("component", "writer"),
	}, nil
}

// Reload publishes the latest commit to searchers created afterwards and
// returns the now visible generation.
func (ix *Index) Reload() uint64 {
	ix.commitMu.Lock()
	defer ix.commitMu.Unlock()
	committed := ix.committed.Load()
	if prev := ix.visible.Swap(committed); prev != committed {
		ix.logger.Info("index reloaded",
			"generation", committed.Number,
			"previous", prev.Number,
			"docs", committed.NumDocs(),
		)
	}
	ix.observeVisible(committed)
	return committed.Number
}

// Searcher returns a snapshot over the visible generation.
func (ix *Index) Searcher() *executor.Searcher {
	return executor.New(ix.schema, ix.visible.Load())
}

// ParseQuery builds a query with the analyzers used at index time.
func (ix *Index) ParseQuery(text string, fields []string, filters map[string][]string) (parser.Query, error) {
	return parser.Parse(ix.schema, ix.analyzers, text, fields, filters)
}

func (ix *Index) Schema() *schema.Schema { return ix.schema }

func (ix *Index) Analyzers() *tokenizer.Registry { return ix.analyzers }

// Generation is the visible generation number.
func (ix *Index) Generation() uint64 { return ix.visible.Load().Number }

// CommittedGeneration is the latest committed generation, which may not be
// visible yet.
func (ix *Index) CommittedGeneration() uint64 { return ix.committed.Load().Number }

func (ix *Index) StoreName() string { return ix.store.Name() }

// Close releases the store.
func (ix *Index) Close() error {
	return ix.store.Close()
}

func (ix *Index) observeVisible(g *index.Generation) {
	if ix.metrics == nil {
		return
	}
	ix.metrics.VisibleGeneration.Set(float64(g.Number))
	ix.metrics.SegmentCount.Set(float64(len(g.Segments)))
}
