package search

import (
	"math"
	"sort"

	"github.com/khaothi-ai/khaothi/internal/domain"
)

const (
	defaultTopK           = 5
	defaultFanOut         = 20
	fanOutMultiplier      = 4
	minFanOut             = 20
	maxFanOut             = 200
	defaultRRFK           = 60
	defaultLexicalWeight  = 1.0
	defaultSemanticWeight = 1.0
	defaultMinScore       = 0.3
)

// fusionCandidate accumulates one chunk's contributions across both legs.
type fusionCandidate struct {
	chunk    domain.Chunk
	rrfScore float64
	temporal float64
}

type fusionParams struct {
	k              int
	lexicalWeight  float64
	semanticWeight float64
	minScore       float64
	year           int
	topK           int
}

// fuse merges the leg result lists with weighted reciprocal rank fusion:
// RRF(c) = sum over legs of w / (k + rank), ranks 1-based per leg. A leg
// entry with a NaN or infinite score, or a score under the floor, does not
// occupy a rank. Ordering is RRF descending, then temporal proximity
// descending when a target year is set, then chunk ID ascending.
func fuse(lexical, semantic []domain.ScoredChunk, p fusionParams) []domain.ScoredChunk {
	candidates := make(map[string]*fusionCandidate)

	addList := func(list []domain.ScoredChunk, weight float64) {
		rank := 0
		for i := range list {
			sc := &list[i]
			if !usableScore(sc.Score, p.minScore) {
				continue
			}
			rank++
			cand, ok := candidates[sc.Chunk.ID]
			if !ok {
				cand = &fusionCandidate{
					chunk:    sc.Chunk,
					temporal: TemporalRank(&sc.Chunk, p.year),
				}
				candidates[sc.Chunk.ID] = cand
			}
			cand.rrfScore += weight / float64(p.k+rank)
		}
	}

	addList(lexical, p.lexicalWeight)
	addList(semantic, p.semanticWeight)

	fused := make([]*fusionCandidate, 0, len(candidates))
	for _, cand := range candidates {
		fused = append(fused, cand)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].rrfScore != fused[j].rrfScore {
			return fused[i].rrfScore > fused[j].rrfScore
		}
		if p.year > 0 && fused[i].temporal != fused[j].temporal {
			return fused[i].temporal > fused[j].temporal
		}
		return fused[i].chunk.ID < fused[j].chunk.ID
	})

	if p.topK > 0 && len(fused) > p.topK {
		fused = fused[:p.topK]
	}

	results := make([]domain.ScoredChunk, len(fused))
	for i, cand := range fused {
		results[i] = domain.ScoredChunk{
			Chunk:  cand.chunk,
			Score:  cand.rrfScore,
			Source: domain.ScoreSourceFused,
		}
	}
	return results
}

func usableScore(s, floor float64) bool {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return false
	}
	return s >= floor
}

// candidateLimit sizes the per-leg fan-out from the requested result count,
// clamped so small requests still see enough candidates and large ones do
// not scan the whole corpus.
func candidateLimit(topK, fanOut int) int {
	limit := fanOut
	if limit <= 0 {
		limit = topK * fanOutMultiplier
	}
	if limit < topK*fanOutMultiplier {
		limit = topK * fanOutMultiplier
	}
	if limit < minFanOut {
		limit = minFanOut
	}
	if limit > maxFanOut {
		limit = maxFanOut
	}
	return limit
}
