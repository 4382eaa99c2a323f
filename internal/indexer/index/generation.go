package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// Generation is a published, immutable list of segments. Segments are
// ordered by BaseDoc and cover a dense doc id range starting at 0.
type Generation struct {
	Number   uint64
	Segments []*Segment
}

// NewGeneration returns generation number over segs. The slice is copied.
func NewGeneration(number uint64, segs []*Segment) *Generation {
	out := make([]*Segment, len(segs))
	copy(out, segs)
	sort.Slice(out, func(i, j int) bool {
		return out[i].BaseDoc() < out[j].BaseDoc()
	})
	return &Generation{Number: number, Segments: out}
}

// Append returns a new generation with seg added. g is left untouched.
func (g *Generation) Append(number uint64, seg *Segment) *Generation {
	segs := make([]*Segment, 0, len(g.Segments)+1)
	segs = append(segs, g.Segments...)
	segs = append(segs, seg)
	return &Generation{Number: number, Segments: segs}
}

// NumDocs is the total number of documents, which is also the next doc id.
func (g *Generation) NumDocs() uint32 {
	if len(g.Segments) == 0 {
		return 0
	}
	return g.Segments[len(g.Segments)-1].MaxDoc()
}

// Segment returns the segment holding docID.
func (g *Generation) Segment(docID uint32) (*Segment, bool) {
	i := sort.Search(len(g.Segments), func(i int) bool {
		return g.Segments[i].MaxDoc() > docID
	})
	if i < len(g.Segments) && g.Segments[i].Contains(docID) {
		return g.Segments[i], true
	}
	return nil, false
}

func (g *Generation) DocFreq(field, term string) int {
	n := 0
	for _, s := range g.Segments {
		n += s.DocFreq(field, term)
	}
	return n
}

func (g *Generation) TotalFieldLength(field string) uint64 {
	var n uint64
	for _, s := range g.Segments {
		n += s.TotalFieldLength(field)
	}
	return n
}

// AvgFieldLength is the mean token count of field over all documents.
func (g *Generation) AvgFieldLength(field string) float64 {
	docs := g.NumDocs()
	if docs == 0 {
		return 0
	}
	return float64(g.TotalFieldLength(field)) / float64(docs)
}

func (g *Generation) AllDocs() *roaring.Bitmap {
	bm := roaring.New()
	if n := g.NumDocs(); n > 0 {
		bm.AddRange(0, uint64(n))
	}
	return bm
}
