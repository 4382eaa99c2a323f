package index

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/facet"
)

// Segment is the immutable batch of documents produced by one commit. Doc
// ids are global: the segment covers [BaseDoc, BaseDoc+NumDocs).
type Segment struct {
	generation uint64
	baseDoc    uint32
	numDocs    uint32
	stored     [][]document.FieldValue
	fields     map[string]*fieldIndex
	facets     map[string]*facetIndex
}

type fieldIndex struct {
	terms    map[string]PostingList
	lengths  []uint32
	totalLen uint64
}

// facetIndex keeps paths sorted with facet.Compare so that the descendants of
// any path form a contiguous run right after it.
type facetIndex struct {
	paths []facet.Facet
	docs  []*roaring.Bitmap
}

// FacetBucket is one facet path with the docs tagged at or below it.
type FacetBucket struct {
	Path facet.Facet
	Docs *roaring.Bitmap
}

func (s *Segment) Generation() uint64 { return s.generation }

func (s *Segment) BaseDoc() uint32 { return s.baseDoc }

func (s *Segment) NumDocs() uint32 { return s.numDocs }

// MaxDoc is one past the last doc id in the segment.
func (s *Segment) MaxDoc() uint32 { return s.baseDoc + s.numDocs }

func (s *Segment) Contains(docID uint32) bool {
	return docID >= s.baseDoc && docID < s.MaxDoc()
}

// Stored returns the stored values of docID.
func (s *Segment) Stored(docID uint32) ([]document.FieldValue, bool) {
	if !s.Contains(docID) {
		return nil, false
	}
	return s.stored[docID-s.baseDoc], true
}

func (s *Segment) Postings(field, term string) PostingList {
	fi, ok := s.fields[field]
	if !ok {
		return nil
	}
	return fi.terms[term]
}

func (s *Segment) DocFreq(field, term string) int {
	return len(s.Postings(field, term))
}

// FieldLength is the number of tokens docID holds in a text field.
func (s *Segment) FieldLength(field string, docID uint32) uint32 {
	fi, ok := s.fields[field]
	if !ok || !s.Contains(docID) || len(fi.lengths) == 0 {
		return 0
	}
	return fi.lengths[docID-s.baseDoc]
}

func (s *Segment) TotalFieldLength(field string) uint64 {
	if fi, ok := s.fields[field]; ok {
		return fi.totalLen
	}
	return 0
}

// Terms returns the field's dictionary sorted by term.
func (s *Segment) Terms(field string) []TermEntry {
	fi, ok := s.fields[field]
	if !ok {
		return nil
	}
	entries := make([]TermEntry, 0, len(fi.terms))
	for term, postings := range fi.terms {
		entries = append(entries, TermEntry{Term: term, Postings: postings})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// AllDocs returns a fresh bitmap of every doc id in the segment.
func (s *Segment) AllDocs() *roaring.Bitmap {
	bm := roaring.New()
	if s.numDocs > 0 {
		bm.AddRange(uint64(s.baseDoc), uint64(s.MaxDoc()))
	}
	return bm
}

// FacetDocs returns the docs tagged at or below path. The bitmap is shared
// and must not be modified.
func (s *Segment) FacetDocs(field string, path facet.Facet) *roaring.Bitmap {
	fx, ok := s.facets[field]
	if !ok {
		return nil
	}
	i := sort.Search(len(fx.paths), func(i int) bool {
		return fx.paths[i].Compare(path) >= 0
	})
	if i < len(fx.paths) && fx.paths[i].Equal(path) {
		return fx.docs[i]
	}
	return nil
}

// FacetChildren returns the paths exactly one level below prefix, in order.
func (s *Segment) FacetChildren(field string, prefix facet.Facet) []FacetBucket {
	fx, ok := s.facets[field]
	if !ok {
		return nil
	}
	start := sort.Search(len(fx.paths), func(i int) bool {
		return fx.paths[i].Compare(prefix) > 0
	})
	var out []FacetBucket
	for i := start; i < len(fx.paths) && prefix.IsPrefixOf(fx.paths[i]); i++ {
		if fx.paths[i].IsChildOf(prefix) {
			out = append(out, FacetBucket{Path: fx.paths[i], Docs: fx.docs[i]})
		}
	}
	return out
}

// SegmentData is the exported, serialisable form of a Segment.
type SegmentData struct {
	Generation uint64                  `json:"generation"`
	BaseDoc    uint32                  `json:"base_doc"`
	NumDocs    uint32                  `json:"num_docs"`
	Stored     [][]document.FieldValue `json:"stored"`
	Fields     []FieldData             `json:"fields"`
	Facets     []FacetData             `json:"facets"`
}

type FieldData struct {
	Name    string      `json:"name"`
	Terms   []TermEntry `json:"terms"`
	Lengths []uint32    `json:"lengths,omitempty"`
}

type FacetData struct {
	Name  string        `json:"name"`
	Paths []facet.Facet `json:"paths"`
	Docs  [][]byte      `json:"docs"`
}

// Data exports the segment. Field and facet sections are sorted by name.
func (s *Segment) Data() (SegmentData, error) {
	d := SegmentData{
		Generation: s.generation,
		BaseDoc:    s.baseDoc,
		NumDocs:    s.numDocs,
		Stored:     s.stored,
	}
	for _, name := range sortedKeys(s.fields) {
		d.Fields = append(d.Fields, FieldData{
			Name:    name,
			Terms:   s.Terms(name),
			Lengths: s.fields[name].lengths,
		})
	}
	for _, name := range sortedKeys(s.facets) {
		fx := s.facets[name]
		fd := FacetData{Name: name, Paths: fx.paths, Docs: make([][]byte, len(fx.docs))}
		for i, bm := range fx.docs {
			b, err := bm.ToBytes()
			if err != nil {
				return SegmentData{}, fmt.Errorf("serialising facet %s%s: %w", name, fx.paths[i], err)
			}
			fd.Docs[i] = b
		}
		d.Facets = append(d.Facets, fd)
	}
	return d, nil
}

// FromData rebuilds a segment from its exported form.
func FromData(d SegmentData) (*Segment, error) {
	if len(d.Stored) != int(d.NumDocs) {
		return nil, fmt.Errorf("segment %d: %d stored docs for %d doc ids", d.Generation, len(d.Stored), d.NumDocs)
	}
	s := &Segment{
		generation: d.Generation,
		baseDoc:    d.BaseDoc,
		numDocs:    d.NumDocs,
		stored:     d.Stored,
		fields:     make(map[string]*fieldIndex, len(d.Fields)),
		facets:     make(map[string]*facetIndex, len(d.Facets)),
	}
	for _, fd := range d.Fields {
		fi := &fieldIndex{terms: make(map[string]PostingList, len(fd.Terms)), lengths: fd.Lengths}
		for _, te := range fd.Terms {
			fi.terms[te.Term] = te.Postings
		}
		for _, l := range fd.Lengths {
			fi.totalLen += uint64(l)
		}
		s.fields[fd.Name] = fi
	}
	for _, fd := range d.Facets {
		if len(fd.Paths) != len(fd.Docs) {
			return nil, fmt.Errorf("segment %d: facet field %s has %d paths and %d doc sets", d.Generation, fd.Name, len(fd.Paths), len(fd.Docs))
		}
		fx := &facetIndex{paths: fd.Paths, docs: make([]*roaring.Bitmap, len(fd.Docs))}
		for i, b := range fd.Docs {
			bm := roaring.New()
			if err := bm.UnmarshalBinary(b); err != nil {
				return nil, fmt.Errorf("segment %d: decoding facet %s%s: %w", d.Generation, fd.Name, fd.Paths[i], err)
			}
			fx.docs[i] = bm
		}
		s.facets[fd.Name] = fx
	}
	return s, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
