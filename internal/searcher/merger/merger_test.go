package merger

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/ranker"
)

func TestMerge(t *testing.T) {
	segs := [][]ranker.ScoredDoc{
		{{DocID: 0, Score: 1}, {DocID: 1, Score: 3}},
		{{DocID: 5, Score: 3}, {DocID: 6, Score: 0.5}},
		{{DocID: 9, Score: 2}},
	}
	tests := []struct {
		name  string
		limit int
		want  []uint32
	}{
		{"top two with tie", 2, []uint32{1, 5}},
		{"more than available", 10, []uint32{1, 5, 9, 0, 6}},
		{"zero", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(segs, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("Merge() = %v, want ids %v", got, tt.want)
			}
			for i, id := range tt.want {
				if got[i].DocID != id {
					t.Errorf("Merge()[%d] = %d, want %d", i, got[i].DocID, id)
				}
			}
		})
	}
}

func BenchmarkMerge(b *testing.B) {
	segs := make([][]ranker.ScoredDoc, 8)
	for s := range segs {
		for i := 0; i < 1000; i++ {
			segs[s] = append(segs[s], ranker.ScoredDoc{DocID: uint32(s*1000 + i), Score: float32(i % 97)})
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Merge(segs, 10)
	}
}
