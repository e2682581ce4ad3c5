// Package safety screens incoming queries against known unsafe intent and
// picks the refusal option for questions that get flagged.
package safety

import (
	"context"
	"log"
	"math"
	"strings"

	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/llm"
	"github.com/khaothi-ai/khaothi/internal/telemetry"
	"github.com/khaothi-ai/khaothi/internal/vntext"
)

// keyword keeps the configured spelling next to its folded form so the
// verdict can report the original.
type keyword struct {
	raw    string
	folded string
}

// Guard is the semantic firewall. It holds a unit-normalized matrix of
// unsafe intent embeddings and a folded keyword list, both fixed at
// construction and shared read-only across queries.
type Guard struct {
	embedder  llm.EmbeddingClient
	threshold float64
	keywords  []keyword
	matrix    [][]float32
}

// GuardConfig configures a Guard. Threshold and Keywords fall back to the
// package defaults when unset; an empty Matrix disables the similarity leg.
type GuardConfig struct {
	Matrix    [][]float32
	Threshold float64
	Keywords  []string
}

// NewGuard builds a Guard. Matrix rows are copied and unit-normalized once
// here; rows with zero norm are dropped.
func NewGuard(embedder llm.EmbeddingClient, cfg GuardConfig) *Guard {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	words := cfg.Keywords
	if words == nil {
		words = DefaultUnsafeKeywords()
	}
	keywords := make([]keyword, 0, len(words))
	for _, w := range words {
		folded := vntext.Fold(strings.TrimSpace(w))
		if folded == "" {
			continue
		}
		keywords = append(keywords, keyword{raw: w, folded: folded})
	}
	return &Guard{
		embedder:  embedder,
		threshold: threshold,
		keywords:  keywords,
		matrix:    normalizeRows(cfg.Matrix),
	}
}

// Check screens one query. Both legs always run; when the embedding call
// fails the verdict is keyword-only with Degraded set rather than an error.
func (g *Guard) Check(ctx context.Context, queryText string) domain.SafetyVerdict {
	var verdict domain.SafetyVerdict
	if kw := g.matchKeyword(queryText); kw != "" {
		verdict.MatchedKeyword = kw
		verdict.Unsafe = true
	}

	vec, err := g.embedder.Embed(ctx, queryText)
	if err != nil {
		verdict.Degraded = true
		log.Printf("safety guard: embedding failed, keyword verdict only: %v", err)
		telemetry.CaptureError(ctx, err)
		return verdict
	}

	verdict.Similarity = g.maxSimilarity(vec)
	if verdict.Similarity >= g.threshold {
		verdict.Unsafe = true
	}
	return verdict
}

func (g *Guard) matchKeyword(queryText string) string {
	folded := vntext.Fold(queryText)
	for _, kw := range g.keywords {
		if strings.Contains(folded, kw.folded) {
			return kw.raw
		}
	}
	return ""
}

// maxSimilarity returns the highest cosine similarity between vec and the
// matrix rows, clamped to [0, 1]. Rows are unit length already, so a single
// division by the query norm is enough.
func (g *Guard) maxSimilarity(vec []float32) float64 {
	norm := vectorNorm(vec)
	if norm == 0 || len(g.matrix) == 0 {
		return 0
	}
	var best float64
	for _, row := range g.matrix {
		if len(row) != len(vec) {
			continue
		}
		var dot float64
		for i, v := range row {
			dot += float64(v) * float64(vec[i])
		}
		if sim := dot / norm; sim > best {
			best = sim
		}
	}
	if best > 1 {
		best = 1
	}
	return best
}

func normalizeRows(matrix [][]float32) [][]float32 {
	rows := make([][]float32, 0, len(matrix))
	for _, row := range matrix {
		norm := vectorNorm(row)
		if norm == 0 {
			continue
		}
		unit := make([]float32, len(row))
		for i, v := range row {
			unit[i] = float32(float64(v) / norm)
		}
		rows = append(rows, unit)
	}
	return rows
}

func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
