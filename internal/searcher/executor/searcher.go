// Package executor evaluates query trees against one published generation
// of the index. A Searcher is immutable and safe for concurrent use.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
)

// Hit is one ranked document. Doc is the document address accepted by Doc.
type Hit struct {
	Score float32 `json:"score"`
	Doc   uint32  `json:"doc"`
}

// Result holds the top hits, the total match count and the facet counts
// keyed by field then child path.
type Result struct {
	Count  int                          `json:"count"`
	Items  []Hit                        `json:"items"`
	Facets map[string]map[string]uint64 `json:"facets"`
}

type Searcher struct {
	schema      *schema.Schema
	gen         *index.Generation
	parallelism int
	logger      *slog.Logger
}

// New returns a searcher over gen.
func New(s *schema.Schema, gen *index.Generation) *Searcher {
	return &Searcher{
		schema:      s,
		gen:         gen,
		parallelism: runtime.GOMAXPROCS(0),
		logger:      slog.Default().With("component", "searcher", "generation", gen.Number),
	}
}

func (s *Searcher) Generation() uint64 { return s.gen.Number }

func (s *Searcher) NumDocs() uint32 { return s.gen.NumDocs() }

func (s *Searcher) NumSegments() int { return len(s.gen.Segments) }

func (s *Searcher) Schema() *schema.Schema { return s.schema }

// DocFreq is the number of documents containing term in field.
func (s *Searcher) DocFreq(field, term string) int {
	return s.gen.DocFreq(field, term)
}

// Doc returns the stored values of the document at addr.
func (s *Searcher) Doc(addr uint32) (document.NamedDoc, error) {
	seg, ok := s.gen.Segment(addr)
	if !ok {
		return nil, fmt.Errorf("%w: address %d outside generation %d (%d docs)",
			apperrors.ErrDocumentNotFound, addr, s.gen.Number, s.gen.NumDocs())
	}
	values, _ := seg.Stored(addr)
	out := make(document.NamedDoc, len(values))
	for _, fv := range values {
		out[fv.Field] = append(out[fv.Field], fv.Value.Interface())
	}
	return out, nil
}

// Docn is an alias of Doc.
func (s *Searcher) Docn(addr uint32) (document.NamedDoc, error) {
	return s.Doc(addr)
}

// Search runs q and returns the best nhits documents. facets maps a facet
// field to the path prefixes whose immediate children should be counted
// over every matching document.
func (s *Searcher) Search(q parser.Query, nhits int, facets map[string][]string) (*Result, error) {
	return s.SearchContext(context.Background(), q, nhits, facets)
}

// SearchContext is Search with cancellation between segments.
func (s *Searcher) SearchContext(ctx context.Context, q parser.Query, nhits int, facets map[string][]string) (*Result, error) {
	start := time.Now()
	requests, err := parseFacetRequests(s.schema, facets)
	if err != nil {
		return nil, err
	}
	scorers := s.termScorers(q)

	segs := s.gen.Segments
	hits := make([][]ranker.ScoredDoc, len(segs))
	counts := make([]int, len(segs))
	facetCounts := make([]map[string]map[string]uint64, len(segs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, seg := range segs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m := s.eval(seg, q, scorers)
			counts[i] = int(m.docs.GetCardinality())
			if nhits > 0 {
				hits[i] = m.ranked(nhits)
			}
			facetCounts[i] = countFacets(seg, m.docs, requests)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}

	result := &Result{Items: []Hit{}, Facets: mergeFacetCounts(requests, facetCounts)}
	for _, n := range counts {
		result.Count += n
	}
	for _, d := range merger.Merge(hits, nhits) {
		result.Items = append(result.Items, Hit{Score: d.Score, Doc: d.DocID})
	}
	s.logger.Debug("query executed",
		"query", q.String(),
		"count", result.Count,
		"items", len(result.Items),
		"segments", len(segs),
		"duration", time.Since(start),
	)
	return result, nil
}

// termScorers computes BM25 statistics for every term in q once per search,
// over the whole generation.
func (s *Searcher) termScorers(q parser.Query) map[parser.TermQuery]ranker.TermScorer {
	terms := parser.Terms(q)
	out := make(map[parser.TermQuery]ranker.TermScorer, len(terms))
	total := int64(s.gen.NumDocs())
	for _, tq := range terms {
		if _, ok := out[tq]; ok {
			continue
		}
		out[tq] = ranker.NewTermScorer(ranker.RankParams{
			TotalDocs:    total,
			DocFreq:      int64(s.gen.DocFreq(tq.Field, tq.Term)),
			AvgDocLength: s.gen.AvgFieldLength(tq.Field),
		})
	}
	return out
}

// matchSet is the evaluation result of a query node within one segment.
// Documents in docs but absent from scores score 0.
type matchSet struct {
	docs   *roaring.Bitmap
	scores map[uint32]float32
}

func emptyMatch() matchSet {
	return matchSet{docs: roaring.New(), scores: map[uint32]float32{}}
}

func (m matchSet) ranked(limit int) []ranker.ScoredDoc {
	all := make(map[uint32]float32, m.docs.GetCardinality())
	it := m.docs.Iterator()
	for it.HasNext() {
		id := it.Next()
		all[id] = m.scores[id]
	}
	return ranker.Rank(all, limit)
}

func (s *Searcher) eval(seg *index.Segment, q parser.Query, scorers map[parser.TermQuery]ranker.TermScorer) matchSet {
	switch n := q.(type) {
	case parser.TermQuery:
		m := emptyMatch()
		scorer := scorers[n]
		for _, p := range seg.Postings(n.Field, n.Term) {
			m.docs.Add(p.DocID)
			m.scores[p.DocID] = scorer.Score(p.Frequency, seg.FieldLength(n.Field, p.DocID))
		}
		return m
	case parser.AllQuery:
		return matchSet{docs: seg.AllDocs(), scores: map[uint32]float32{}}
	case parser.FacetQuery:
		return matchSet{docs: facetDocs(seg, n), scores: map[uint32]float32{}}
	case parser.BooleanQuery:
		return s.evalBoolean(seg, n, scorers)
	}
	return emptyMatch()
}

func (s *Searcher) evalBoolean(seg *index.Segment, q parser.BooleanQuery, scorers map[parser.TermQuery]ranker.TermScorer) matchSet {
	var must, should []matchSet
	for _, c := range q.Clauses {
		m := s.eval(seg, c.Query, scorers)
		if c.Occur == parser.Must {
			must = append(must, m)
		} else {
			should = append(should, m)
		}
	}

	result := emptyMatch()
	if len(must) > 0 {
		result.docs = must[0].docs.Clone()
		for _, m := range must[1:] {
			result.docs.And(m.docs)
		}
	} else {
		for _, m := range should {
			result.docs.Or(m.docs)
		}
	}
	for _, m := range append(must, should...) {
		for id, score := range m.scores {
			if result.docs.Contains(id) {
				result.scores[id] += score
			}
		}
	}
	return result
}

// facetDocs unions the descendant sets of every path. The root path selects
// every document tagged in the field.
func facetDocs(seg *index.Segment, q parser.FacetQuery) *roaring.Bitmap {
	var sets []*roaring.Bitmap
	for _, p := range q.Paths {
		if p.IsRoot() {
			for _, child := range seg.FacetChildren(q.Field, p) {
				sets = append(sets, child.Docs)
			}
			continue
		}
		if bm := seg.FacetDocs(q.Field, p); bm != nil {
			sets = append(sets, bm)
		}
	}
	if len(sets) == 0 {
		return roaring.New()
	}
	return roaring.FastOr(sets...)
}
