package index

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/facet"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
)

// SegmentBuilder buffers documents added since the last commit. Freeze
// produces an immutable Segment without disturbing the buffer, so a failed
// commit can be retried.
type SegmentBuilder struct {
	mu        sync.RWMutex
	schema    *schema.Schema
	analyzers map[string]tokenizer.Analyzer
	baseDoc   uint32
	stored    [][]document.FieldValue
	postings  map[string]map[string]PostingList
	lengths   map[string][]uint32
	facets    map[string]map[string]*pathDocs
	size      int64
}

type pathDocs struct {
	path facet.Facet
	docs *roaring.Bitmap
}

// NewSegmentBuilder resolves the analyzer of every indexed text field up
// front. An unregistered tokenizer name is an error.
func NewSegmentBuilder(s *schema.Schema, registry *tokenizer.Registry, baseDoc uint32) (*SegmentBuilder, error) {
	analyzers := make(map[string]tokenizer.Analyzer)
	for _, f := range s.Fields() {
		if f.Type != schema.TypeText || !f.Indexed {
			continue
		}
		a, ok := registry.Get(f.Tokenizer)
		if !ok {
			return nil, fmt.Errorf("%w: field %q uses %q", apperrors.ErrUnknownTokenizer, f.Name, f.Tokenizer)
		}
		analyzers[f.Name] = a
	}
	b := &SegmentBuilder{schema: s, analyzers: analyzers}
	b.reset(baseDoc)
	return b, nil
}

// AddDocument indexes doc under docID, which must be the next id in
// sequence.
func (b *SegmentBuilder) AddDocument(docID uint32, doc *document.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if want := b.baseDoc + uint32(len(b.stored)); docID != want {
		return fmt.Errorf("%w: doc id %d out of sequence, expected %d", apperrors.ErrInternal, docID, want)
	}

	termData := make(map[string]map[string]*Posting)
	fieldLen := make(map[string]uint32)
	for _, fv := range doc.Fields() {
		entry, ok := b.schema.Field(fv.Field)
		if !ok || !entry.Indexed {
			continue
		}
		switch entry.Type {
		case schema.TypeText:
			offset := int(fieldLen[fv.Field])
			tokens := b.analyzers[fv.Field].Analyze(fv.Value.Text)
			for _, tok := range tokens {
				addOccurrence(termData, fv.Field, tok.Term, docID, offset+tok.Position)
			}
			fieldLen[fv.Field] += uint32(len(tokens))
		case schema.TypeI64:
			addOccurrence(termData, fv.Field, strconv.FormatInt(fv.Value.I64, 10), docID, -1)
		case schema.TypeU64:
			addOccurrence(termData, fv.Field, strconv.FormatUint(fv.Value.U64, 10), docID, -1)
		case schema.TypeFacet:
			b.tagFacet(fv.Field, fv.Value.Facet, docID)
		}
	}

	for field, terms := range termData {
		fp, exists := b.postings[field]
		if !exists {
			fp = make(map[string]PostingList)
			b.postings[field] = fp
		}
		for term, posting := range terms {
			fp[term] = append(fp[term], *posting)
			b.size += int64(len(term) + len(posting.Positions)*8 + 32)
		}
	}
	for field := range b.analyzers {
		b.lengths[field] = append(b.lengths[field], fieldLen[field])
	}
	stored := doc.StoredValues()
	for _, fv := range stored {
		b.size += int64(len(fv.Field) + len(fv.Value.Text) + 48)
	}
	b.stored = append(b.stored, stored)
	return nil
}

func addOccurrence(termData map[string]map[string]*Posting, field, term string, docID uint32, pos int) {
	terms, ok := termData[field]
	if !ok {
		terms = make(map[string]*Posting)
		termData[field] = terms
	}
	p, exists := terms[term]
	if !exists {
		p = &Posting{DocID: docID}
		terms[term] = p
	}
	p.Frequency++
	if pos >= 0 {
		p.Positions = append(p.Positions, pos)
	}
}

// tagFacet records docID under path and each of its ancestors.
func (b *SegmentBuilder) tagFacet(field string, path facet.Facet, docID uint32) {
	paths, ok := b.facets[field]
	if !ok {
		paths = make(map[string]*pathDocs)
		b.facets[field] = paths
	}
	for _, anc := range path.Ancestors() {
		key := anc.String()
		pd, exists := paths[key]
		if !exists {
			pd = &pathDocs{path: anc, docs: roaring.New()}
			paths[key] = pd
			b.size += int64(len(key) + 64)
		}
		pd.docs.Add(docID)
	}
}

// Freeze copies the buffered state into an immutable segment stamped with
// generation.
func (b *SegmentBuilder) Freeze(generation uint64) *Segment {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seg := &Segment{
		generation: generation,
		baseDoc:    b.baseDoc,
		numDocs:    uint32(len(b.stored)),
		stored:     make([][]document.FieldValue, len(b.stored)),
		fields:     make(map[string]*fieldIndex, len(b.postings)+len(b.lengths)),
		facets:     make(map[string]*facetIndex, len(b.facets)),
	}
	copy(seg.stored, b.stored)

	field := func(name string) *fieldIndex {
		fi, ok := seg.fields[name]
		if !ok {
			fi = &fieldIndex{terms: make(map[string]PostingList)}
			seg.fields[name] = fi
		}
		return fi
	}
	for name, terms := range b.postings {
		fi := field(name)
		for term, postings := range terms {
			fi.terms[term] = append(PostingList(nil), postings...)
		}
	}
	for name, lengths := range b.lengths {
		fi := field(name)
		fi.lengths = append([]uint32(nil), lengths...)
		for _, l := range lengths {
			fi.totalLen += uint64(l)
		}
	}
	for name, paths := range b.facets {
		fx := &facetIndex{
			paths: make([]facet.Facet, 0, len(paths)),
			docs:  make([]*roaring.Bitmap, 0, len(paths)),
		}
		sorted := make([]*pathDocs, 0, len(paths))
		for _, pd := range paths {
			sorted = append(sorted, pd)
		}
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].path.Compare(sorted[j].path) < 0
		})
		for _, pd := range sorted {
			docs := pd.docs.Clone()
			docs.RunOptimize()
			fx.paths = append(fx.paths, pd.path)
			fx.docs = append(fx.docs, docs)
		}
		seg.facets[name] = fx
	}
	return seg
}

func (b *SegmentBuilder) Size() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

func (b *SegmentBuilder) DocCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.stored)
}

func (b *SegmentBuilder) BaseDoc() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.baseDoc
}

// Reset empties the buffer; the next document gets baseDoc.
func (b *SegmentBuilder) Reset(baseDoc uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset(baseDoc)
}

func (b *SegmentBuilder) reset(baseDoc uint32) {
	b.baseDoc = baseDoc
	b.stored = nil
	b.postings = make(map[string]map[string]PostingList)
	b.lengths = make(map[string][]uint32)
	b.facets = make(map[string]map[string]*pathDocs)
	b.size = 0
}
