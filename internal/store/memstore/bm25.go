package memstore

import (
	"math"

	"github.com/khaothi-ai/khaothi/internal/vntext"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

type posting struct {
	doc int
	tf  int
}

// lexicalIndex is an in-process Okapi BM25 index over tokenized chunk text.
// It is built once at load and never mutated afterwards.
type lexicalIndex struct {
	postings  map[string][]posting
	docLens   []int
	avgDocLen float64
	total     int
}

func newLexicalIndex(texts []string) *lexicalIndex {
	ix := &lexicalIndex{
		postings: make(map[string][]posting),
		docLens:  make([]int, len(texts)),
		total:    len(texts),
	}

	var lenSum int
	for i, text := range texts {
		tokens := vntext.Tokenize(text)
		ix.docLens[i] = len(tokens)
		lenSum += len(tokens)

		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for term, n := range tf {
			ix.postings[term] = append(ix.postings[term], posting{doc: i, tf: n})
		}
	}
	if ix.total > 0 {
		ix.avgDocLen = float64(lenSum) / float64(ix.total)
	}
	return ix
}

// search scores every document matching at least one query term. Scores are
// raw BM25 sums, unbounded above and always positive.
func (ix *lexicalIndex) search(query string) map[int]float64 {
	tokens := vntext.Tokenize(query)
	if len(tokens) == 0 || ix.total == 0 || ix.avgDocLen == 0 {
		return nil
	}

	scores := make(map[int]float64)
	for _, term := range tokens {
		ps := ix.postings[term]
		if len(ps) == 0 {
			continue
		}

		n := float64(len(ps))
		total := float64(ix.total)
		idf := math.Log((total-n+0.5)/(n+0.5) + 1)

		for _, p := range ps {
			dl := float64(ix.docLens[p.doc])
			tf := float64(p.tf)
			scores[p.doc] += idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*(1-bm25B+bm25B*dl/ix.avgDocLen))
		}
	}
	return scores
}
