// Package merger selects the global top-k from per-segment result lists.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/ranker"
)

// Merge returns the best limit documents across all lists in ranker order.
// limit <= 0 yields no documents.
func Merge(segmentResults [][]ranker.ScoredDoc, limit int) []ranker.ScoredDoc {
	if limit <= 0 {
		return nil
	}
	h := &scoredDocHeap{}
	heap.Init(h)
	for _, results := range segmentResults {
		for _, doc := range results {
			if h.Len() == limit && !ranker.Less(doc, (*h)[0]) {
				continue
			}
			heap.Push(h, doc)
			if h.Len() > limit {
				heap.Pop(h)
			}
		}
	}
	result := make([]ranker.ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranker.ScoredDoc)
	}
	return result
}

// scoredDocHeap is a min-heap on result order: the root is the worst
// document currently kept.
type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	return ranker.Less(h[j], h[i])
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
