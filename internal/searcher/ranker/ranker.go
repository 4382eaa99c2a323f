// Package ranker implements Okapi BM25 scoring.
package ranker

import (
	"math"
	"sort"
)

const (
	k1 = 1.2
	b  = 0.75
)

type ScoredDoc struct {
	DocID uint32  `json:"doc_id"`
	Score float32 `json:"score"`
}

// Less orders by descending score, then ascending doc id.
func Less(x, y ScoredDoc) bool {
	if x.Score != y.Score {
		return x.Score > y.Score
	}
	return x.DocID < y.DocID
}

// RankParams are the collection statistics for one field.
type RankParams struct {
	TotalDocs    int64
	DocFreq      int64
	AvgDocLength float64
}

// TermScorer scores the postings of a single term in a single field.
type TermScorer struct {
	idf          float64
	avgDocLength float64
}

func NewTermScorer(params RankParams) TermScorer {
	return TermScorer{
		idf:          computeIDF(params.TotalDocs, params.DocFreq),
		avgDocLength: params.AvgDocLength,
	}
}

// Score returns the BM25 contribution of a term occurring termFreq times in
// a field of docLength tokens.
func (s TermScorer) Score(termFreq int, docLength uint32) float32 {
	return float32(s.idf * computeTFNorm(float64(termFreq), float64(docLength), s.avgDocLength))
}

// Rank sorts scores into result order and keeps at most limit entries.
// limit <= 0 keeps everything.
func Rank(scores map[uint32]float32, limit int) []ScoredDoc {
	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		result = append(result, ScoredDoc{DocID: docID, Score: score})
	}
	sort.Slice(result, func(i, j int) bool {
		return Less(result[i], result[j])
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(1 + numerator/denominator)
}

// computeTFNorm falls back to an unnormalised length when the field has no
// length statistics, as for integer fields.
func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	lengthRatio := 1.0
	if avgDocLength > 0 {
		lengthRatio = docLength / avgDocLength
	}
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
