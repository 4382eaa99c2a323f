package indexer

import (
	"context"
	"fmt"
	"testing"
)

var benchBodies = []string{
	"search engine with an inverted index and query processing",
	"facet counts over a hierarchy of categories",
	"ranking documents by term frequency and document length",
	"segments are frozen on commit and merged at query time",
}

func benchIndex(b *testing.B, docs int) *Index {
	b.Helper()
	s := bookSchema(b)
	ix, err := New(s)
	if err != nil {
		b.Fatal(err)
	}
	w, err := ix.Writer()
	if err != nil {
		b.Fatal(err)
	}
	for i := range docs {
		cat := fmt.Sprintf("/category/c%d", i%8)
		if _, err := w.AddDocument(book(b, s, fmt.Sprintf("doc %d", i), benchBodies[i%len(benchBodies)], cat)); err != nil {
			b.Fatal(err)
		}
		if (i+1)%1000 == 0 {
			if _, err := w.Commit(context.Background()); err != nil {
				b.Fatal(err)
			}
		}
	}
	if _, err := w.Commit(context.Background()); err != nil {
		b.Fatal(err)
	}
	ix.Reload()
	return ix
}

func BenchmarkAddDocument(b *testing.B) {
	s := bookSchema(b)
	ix, err := New(s)
	if err != nil {
		b.Fatal(err)
	}
	w, err := ix.Writer()
	if err != nil {
		b.Fatal(err)
	}
	doc := book(b, s, "benchmark title", benchBodies[0], "/category/bench")
	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		if _, err := w.AddDocument(doc); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCommit(b *testing.B) {
	for _, batch := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("docs_%d", batch), func(b *testing.B) {
			s := bookSchema(b)
			ix, err := New(s)
			if err != nil {
				b.Fatal(err)
			}
			w, err := ix.Writer()
			if err != nil {
				b.Fatal(err)
			}
			doc := book(b, s, "benchmark title", benchBodies[1], "/category/bench")
			b.ReportAllocs()
			b.ResetTimer()
			for range b.N {
				b.StopTimer()
				for range batch {
					w.AddDocument(doc)
				}
				b.StartTimer()
				if _, err := w.Commit(context.Background()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkSearchParallel(b *testing.B) {
	ix := benchIndex(b, 10000)
	q, err := ix.ParseQuery("inverted index ranking", []string{"title", "body"}, nil)
	if err != nil {
		b.Fatal(err)
	}
	facets := map[string][]string{"facets": {"/category"}}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := ix.Searcher().Search(q, 10, facets); err != nil {
				b.Fatal(err)
			}
		}
	})
}
