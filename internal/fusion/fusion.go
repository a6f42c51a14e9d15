// Package fusion merges keyword and semantic result lists into one ranking.
package fusion

import (
	"math"
	"sort"
)

// Method selects the fusion algorithm.
type Method string

const (
	MethodRRF      Method = "rrf"
	MethodWeighted Method = "weighted"
)

// DefaultRRFK is the rank-smoothing constant for reciprocal rank fusion.
const DefaultRRFK = 60

// Default weights for weighted fusion.
const (
	DefaultBM25Weight     = 0.3
	DefaultSemanticWeight = 0.7
)

// normEpsilon guards max-normalization against a zero maximum.
const normEpsilon = 1e-9

// Ranked is one entry of an input list, already ordered best-first.
type Ranked struct {
	ID    string
	Score float64
}

// Weights configures weighted fusion.
type Weights struct {
	BM25     float64
	Semantic float64
}

// Result is one fused entry. BM25Score and SemanticScore carry the raw
// per-source scores when the document appeared in that source.
type Result struct {
	ID            string
	Score         float64
	BM25Score     float64
	SemanticScore float64
}

// Fuse merges two independently rank-ordered lists. A document may appear in
// only one list. Output is sorted descending by fused score; ties break by
// BM25 rank (documents absent from the BM25 list sort after present ones),
// then by id, so the ordering is fully deterministic.
func Fuse(bm25, semantic []Ranked, method Method, weights *Weights) []Result {
	var results []Result
	switch method {
	case MethodWeighted:
		results = fuseWeighted(bm25, semantic, weights)
	default:
		results = fuseRRF(bm25, semantic, DefaultRRFK)
	}

	bm25Rank := rankOf(bm25)
	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		ra, rb := tieRank(bm25Rank, results[a].ID), tieRank(bm25Rank, results[b].ID)
		if ra != rb {
			return ra < rb
		}
		return results[a].ID < results[b].ID
	})

	return results
}

// fuseRRF sums reciprocal rank contributions 1/(k+r) with 0-based rank r from
// each source list.
func fuseRRF(bm25, semantic []Ranked, k int) []Result {
	merged := make(map[string]*Result)

	for rank, entry := range bm25 {
		r := upsert(merged, entry.ID)
		r.Score += 1.0 / float64(k+rank)
		r.BM25Score = entry.Score
	}
	for rank, entry := range semantic {
		r := upsert(merged, entry.ID)
		r.Score += 1.0 / float64(k+rank)
		r.SemanticScore = entry.Score
	}

	return collect(merged)
}

// fuseWeighted max-normalizes each list to [0,1] and combines the normalized
// scores linearly.
func fuseWeighted(bm25, semantic []Ranked, weights *Weights) []Result {
	w := Weights{BM25: DefaultBM25Weight, Semantic: DefaultSemanticWeight}
	if weights != nil {
		w = *weights
	}

	merged := make(map[string]*Result)

	bm25Max := maxScore(bm25)
	for _, entry := range bm25 {
		r := upsert(merged, entry.ID)
		r.Score += w.BM25 * entry.Score / bm25Max
		r.BM25Score = entry.Score
	}

	semanticMax := maxScore(semantic)
	for _, entry := range semantic {
		r := upsert(merged, entry.ID)
		r.Score += w.Semantic * entry.Score / semanticMax
		r.SemanticScore = entry.Score
	}

	return collect(merged)
}

func maxScore(list []Ranked) float64 {
	maxVal := 0.0
	for _, entry := range list {
		maxVal = math.Max(maxVal, entry.Score)
	}
	if maxVal < normEpsilon {
		return normEpsilon
	}
	return maxVal
}

func upsert(merged map[string]*Result, id string) *Result {
	if r, ok := merged[id]; ok {
		return r
	}
	r := &Result{ID: id}
	merged[id] = r
	return r
}

func collect(merged map[string]*Result) []Result {
	out := make([]Result, 0, len(merged))
	for _, r := range merged {
		out = append(out, *r)
	}
	return out
}

func rankOf(list []Ranked) map[string]int {
	ranks := make(map[string]int, len(list))
	for i, entry := range list {
		ranks[entry.ID] = i
	}
	return ranks
}

func tieRank(ranks map[string]int, id string) int {
	if r, ok := ranks[id]; ok {
		return r
	}
	return math.MaxInt
}
