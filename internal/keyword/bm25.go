// Package keyword implements an in-memory BM25 inverted-index ranker over
// chunk text.
package keyword

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Tunable constants with the usual BM25 defaults.
const (
	DefaultK1 = 1.5  // term-frequency saturation
	DefaultB  = 0.75 // document length normalization
)

// minTokenLength drops very short tokens during indexing and querying.
const minTokenLength = 3

// Document is one indexable unit of text.
type Document struct {
	ID      string
	Content string
}

// Result is a ranked hit.
type Result struct {
	ID    string
	Score float64
}

// Index is an immutable BM25 index over a fixed corpus. Concurrent readers
// are safe; a corpus change means building a new Index and swapping the
// pointer (copy-on-write).
type Index struct {
	k1, b  float64
	ids    []string         // corpus order, for stable tie-breaking
	tf     []map[string]int // per-document term frequencies
	length []int            // per-document token counts
	df     map[string]int   // global document frequency per term
	avgdl  float64
}

// NewIndex builds the index wholesale from docs. Non-positive k1/b select the
// defaults.
func NewIndex(docs []Document, k1, b float64) *Index {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b <= 0 {
		b = DefaultB
	}

	ix := &Index{
		k1:     k1,
		b:      b,
		ids:    make([]string, len(docs)),
		tf:     make([]map[string]int, len(docs)),
		length: make([]int, len(docs)),
		df:     make(map[string]int),
	}

	totalLen := 0
	for i, doc := range docs {
		tokens := Tokenize(doc.Content)
		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}

		ix.ids[i] = doc.ID
		ix.tf[i] = freq
		ix.length[i] = len(tokens)
		totalLen += len(tokens)

		for term := range freq {
			ix.df[term]++
		}
	}

	if len(docs) > 0 {
		ix.avgdl = float64(totalLen) / float64(len(docs))
	}

	return ix
}

// Len returns the corpus size.
func (ix *Index) Len() int {
	return len(ix.ids)
}

// Search ranks the corpus against query and returns up to topK results,
// descending by score. Documents matching no query term are excluded. Ties
// break by original corpus order for determinism.
func (ix *Index) Search(query string, topK int) []Result {
	terms := Tokenize(query)
	if len(terms) == 0 || ix.Len() == 0 {
		return nil
	}

	n := float64(ix.Len())
	idf := make(map[string]float64, len(terms))
	for _, term := range terms {
		if _, done := idf[term]; done {
			continue
		}
		df := float64(ix.df[term])
		idf[term] = math.Log((n-df+0.5)/(df+0.5) + 1)
	}

	var results []Result
	for i := range ix.ids {
		score := 0.0
		norm := 1 - ix.b + ix.b*float64(ix.length[i])/ix.avgdl
		for term, termIDF := range idf {
			tf := float64(ix.tf[i][term])
			if tf == 0 {
				continue
			}
			score += termIDF * (tf * (ix.k1 + 1)) / (tf + ix.k1*norm)
		}
		if score > 0 {
			results = append(results, Result{ID: ix.ids[i], Score: score})
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Tokenize lowercases, strips punctuation, splits on whitespace and drops
// tokens shorter than three characters.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return r
		default:
			return ' '
		}
	}, text)

	fields := strings.Fields(cleaned)
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= minTokenLength {
			out = append(out, f)
		}
	}
	return out
}
