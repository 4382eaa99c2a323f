package index

import (
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/facet"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.NewBuilder().
		AddTextField("title", schema.Stored()).
		AddTextField("body").
		AddFacetField("facets").
		AddU64Field("year", true, true).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newDoc(t *testing.T, s *schema.Schema, title, body string, year uint64, facets ...string) *document.Document {
	t.Helper()
	doc := document.New(s)
	if err := doc.AddText("title", title); err != nil {
		t.Fatal(err)
	}
	if err := doc.AddText("body", body); err != nil {
		t.Fatal(err)
	}
	if err := doc.AddU64("year", year); err != nil {
		t.Fatal(err)
	}
	for _, f := range facets {
		if err := doc.AddFacet("facets", facet.MustFromString(f)); err != nil {
			t.Fatal(err)
		}
	}
	return doc
}

func TestBuilderRejectsUnknownTokenizer(t *testing.T) {
	s, err := schema.NewBuilder().AddTextField("t", schema.WithTokenizer("klingon")).Build()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewSegmentBuilder(s, tokenizer.NewRegistry(), 0); !errors.Is(err, apperrors.ErrUnknownTokenizer) {
		t.Errorf("NewSegmentBuilder() error = %v", err)
	}
}

func TestBuilderAndSegment(t *testing.T) {
	s := testSchema(t)
	b, err := NewSegmentBuilder(s, tokenizer.NewRegistry(), 10)
	if err != nil {
		t.Fatal(err)
	}
	docs := []*document.Document{
		newDoc(t, s, "The Old Man and the Sea", "an old fisherman at sea", 1952, "/category/category1"),
		newDoc(t, s, "Of Mice and Men", "two ranch workers", 1937, "/category/category2", "/author/steinbeck"),
	}
	for i, d := range docs {
		if err := b.AddDocument(uint32(10+i), d); err != nil {
			t.Fatalf("AddDocument(%d) error: %v", 10+i, err)
		}
	}
	if err := b.AddDocument(50, docs[0]); !errors.Is(err, apperrors.ErrInternal) {
		t.Errorf("out of sequence add error = %v", err)
	}

	seg := b.Freeze(3)
	if seg.Generation() != 3 || seg.BaseDoc() != 10 || seg.NumDocs() != 2 {
		t.Fatalf("segment = gen %d base %d docs %d", seg.Generation(), seg.BaseDoc(), seg.NumDocs())
	}

	sea := seg.Postings("body", "sea")
	if len(sea) != 1 || sea[0].DocID != 10 || sea[0].Frequency != 1 {
		t.Errorf("body:sea postings = %+v", sea)
	}
	if got := seg.Postings("title", "the"); len(got) != 1 || got[0].Frequency != 2 {
		t.Errorf("title:the postings = %+v", got)
	}
	if got := seg.DocFreq("year", "1937"); got != 1 {
		t.Errorf("DocFreq(year, 1937) = %d", got)
	}
	if got := seg.FieldLength("title", 10); got != 6 {
		t.Errorf("FieldLength(title, 10) = %d, want 6", got)
	}

	cat := seg.FacetDocs("facets", facet.MustFromString("/category"))
	if cat == nil || cat.GetCardinality() != 2 {
		t.Fatalf("FacetDocs(/category) = %v", cat)
	}
	children := seg.FacetChildren("facets", facet.MustFromString("/category"))
	if len(children) != 2 || children[0].Path.String() != "/category/category1" {
		t.Errorf("FacetChildren(/category) = %v", children)
	}
	roots := seg.FacetChildren("facets", facet.Root())
	if len(roots) != 2 || roots[0].Path.String() != "/author" || roots[1].Path.String() != "/category" {
		t.Errorf("FacetChildren(/) = %v", roots)
	}

	stored, ok := seg.Stored(11)
	if !ok {
		t.Fatal("Stored(11) missing")
	}
	for _, fv := range stored {
		if fv.Field == "body" {
			t.Error("body must not be stored")
		}
	}
	if _, ok := seg.Stored(12); ok {
		t.Error("Stored(12) should be out of range")
	}
}

func TestFreezeLeavesBuilderIntact(t *testing.T) {
	s := testSchema(t)
	b, err := NewSegmentBuilder(s, tokenizer.NewRegistry(), 0)
	if err != nil {
		t.Fatal(err)
	}
	_ = b.AddDocument(0, newDoc(t, s, "alpha", "", 1, "/x"))
	first := b.Freeze(1)
	_ = b.AddDocument(1, newDoc(t, s, "alpha", "", 2, "/x"))

	if first.NumDocs() != 1 || len(first.Postings("title", "alpha")) != 1 {
		t.Error("frozen segment changed after further adds")
	}
	if b.DocCount() != 2 {
		t.Errorf("DocCount() = %d, want 2", b.DocCount())
	}
	b.Reset(2)
	if b.DocCount() != 0 || b.BaseDoc() != 2 || b.Size() != 0 {
		t.Error("Reset did not clear the buffer")
	}
}

func TestDataRoundTrip(t *testing.T) {
	s := testSchema(t)
	b, _ := NewSegmentBuilder(s, tokenizer.NewRegistry(), 0)
	_ = b.AddDocument(0, newDoc(t, s, "Frankenstein", "the modern prometheus", 1818, "/category/gothic"))
	seg := b.Freeze(1)

	data, err := seg.Data()
	if err != nil {
		t.Fatal(err)
	}
	back, err := FromData(data)
	if err != nil {
		t.Fatalf("FromData() error: %v", err)
	}
	if back.TotalFieldLength("body") != seg.TotalFieldLength("body") {
		t.Error("field lengths differ after round trip")
	}
	if got := back.FacetDocs("facets", facet.MustFromString("/category/gothic")); got == nil || !got.Contains(0) {
		t.Error("facet bitmap lost in round trip")
	}
}

func TestGeneration(t *testing.T) {
	s := testSchema(t)
	reg := tokenizer.NewRegistry()
	b, _ := NewSegmentBuilder(s, reg, 0)
	_ = b.AddDocument(0, newDoc(t, s, "sea", "sea sea", 1))
	_ = b.AddDocument(1, newDoc(t, s, "land", "", 2))
	g1 := NewGeneration(1, []*Segment{b.Freeze(1)})
	b.Reset(2)
	_ = b.AddDocument(2, newDoc(t, s, "sea", "", 3))
	g2 := g1.Append(2, b.Freeze(2))

	if len(g1.Segments) != 1 {
		t.Error("Append modified the receiver")
	}
	if g2.NumDocs() != 3 {
		t.Errorf("NumDocs() = %d, want 3", g2.NumDocs())
	}
	if df := g2.DocFreq("title", "sea"); df != 2 {
		t.Errorf("DocFreq(title, sea) = %d, want 2", df)
	}
	if seg, ok := g2.Segment(2); !ok || seg.BaseDoc() != 2 {
		t.Error("Segment(2) lookup failed")
	}
	if _, ok := g2.Segment(3); ok {
		t.Error("Segment(3) should not exist")
	}
	if avg := g2.AvgFieldLength("body"); avg != 2.0/3.0 {
		t.Errorf("AvgFieldLength(body) = %v", avg)
	}
	if g2.AllDocs().GetCardinality() != 3 {
		t.Error("AllDocs cardinality")
	}
}
