// Package search implements hybrid retrieval: a lexical and a semantic leg
// run concurrently over the knowledge store, and their rankings merge via
// weighted reciprocal rank fusion with temporal tie-breaking.
package search

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/llm"
	"github.com/khaothi-ai/khaothi/internal/store"
	"github.com/khaothi-ai/khaothi/internal/telemetry"
)

// Config tunes the engine. Zero values fall back to compiled defaults; a nil
// Profiles map gets DefaultProfiles over the base.
type Config struct {
	TopK           int
	FanOut         int
	RRFK           int
	MinScore       float64
	LexicalWeight  float64
	SemanticWeight float64
	Profiles       map[domain.ChunkType]Profile
}

// Engine runs hybrid searches. Safe for concurrent use; it holds no
// per-query state.
type Engine struct {
	store    store.KnowledgeStore
	embedder llm.EmbeddingClient
	rrfK     int
	minScore float64
	base     Profile
	profiles map[domain.ChunkType]Profile
}

func NewEngine(st store.KnowledgeStore, embedder llm.EmbeddingClient, cfg Config) *Engine {
	base := Profile{
		TopK:           cfg.TopK,
		FanOut:         cfg.FanOut,
		LexicalWeight:  cfg.LexicalWeight,
		SemanticWeight: cfg.SemanticWeight,
		UseTemporal:    true,
	}
	if base.TopK <= 0 {
		base.TopK = defaultTopK
	}
	if base.FanOut <= 0 {
		base.FanOut = defaultFanOut
	}
	if base.LexicalWeight <= 0 {
		base.LexicalWeight = defaultLexicalWeight
	}
	if base.SemanticWeight <= 0 {
		base.SemanticWeight = defaultSemanticWeight
	}

	rrfK := cfg.RRFK
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}
	minScore := cfg.MinScore
	if minScore < 0 {
		minScore = 0
	}

	profiles := cfg.Profiles
	if profiles == nil {
		profiles = DefaultProfiles(base)
	}

	return &Engine{
		store:    st,
		embedder: embedder,
		rrfK:     rrfK,
		minScore: minScore,
		base:     base,
		profiles: profiles,
	}
}

// Input carries one search request. Year, Entities and Category usually come
// from the router's decision; TopK overrides the profile when positive.
type Input struct {
	Query    string
	Year     int
	Entities []string
	Category domain.ChunkType
	TopK     int
}

// Output is the fused result set plus the degrade flags the caller needs for
// auditing. A degraded leg contributed nothing; it never fails the search.
type Output struct {
	Results          []domain.ScoredChunk
	LexicalDegraded  bool
	SemanticDegraded bool
	TemporalApplied  bool
}

// Search runs both retrieval legs concurrently, excludes temporally invalid
// chunks when a target year is known, and fuses the remainder. It does not
// return an error: a failed leg degrades to empty and the flags record it.
func (e *Engine) Search(ctx context.Context, in Input) Output {
	prof := e.profileFor(in.Category)
	topK := in.TopK
	if topK <= 0 {
		topK = prof.TopK
	}
	fanOut := candidateLimit(topK, prof.FanOut)

	baseFilter := store.Filter{}
	if in.Category != "" {
		baseFilter.Types = []domain.ChunkType{in.Category}
	}
	// Entity narrowing applies to the lexical leg only. The semantic leg
	// already matches on meaning; requiring literal substrings there would
	// drop paraphrased evidence.
	lexFilter := baseFilter
	lexFilter.Entities = in.Entities

	var out Output
	var lexical, semantic []domain.ScoredChunk

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := e.store.LexicalSearch(gctx, in.Query, lexFilter, fanOut)
		if err != nil {
			out.LexicalDegraded = true
			log.Printf("search: lexical leg degraded: %v", err)
			telemetry.CaptureError(gctx, err)
			return nil
		}
		lexical = res
		return nil
	})
	g.Go(func() error {
		vec, err := e.embedder.Embed(gctx, in.Query)
		if err != nil {
			out.SemanticDegraded = true
			log.Printf("search: semantic leg degraded at embedding: %v", err)
			telemetry.CaptureError(gctx, err)
			return nil
		}
		res, err := e.store.VectorSearch(gctx, vec, baseFilter, fanOut)
		if err != nil {
			out.SemanticDegraded = true
			log.Printf("search: semantic leg degraded at store: %v", err)
			telemetry.CaptureError(gctx, err)
			return nil
		}
		semantic = res
		return nil
	})
	_ = g.Wait()

	applyTemporal := in.Year > 0 && prof.UseTemporal
	if applyTemporal {
		lexical = temporalExclude(lexical, in.Year)
		semantic = temporalExclude(semantic, in.Year)
	}

	fusionYear := 0
	if applyTemporal {
		fusionYear = in.Year
	}

	out.Results = fuse(lexical, semantic, fusionParams{
		k:              e.rrfK,
		lexicalWeight:  prof.LexicalWeight,
		semanticWeight: prof.SemanticWeight,
		minScore:       e.minScore,
		year:           fusionYear,
		topK:           topK,
	})
	out.TemporalApplied = applyTemporal
	return out
}

func (e *Engine) profileFor(category domain.ChunkType) Profile {
	if category == "" {
		return e.base
	}
	if prof, ok := e.profiles[category]; ok {
		return prof
	}
	return e.base
}

func temporalExclude(list []domain.ScoredChunk, year int) []domain.ScoredChunk {
	kept := make([]domain.ScoredChunk, 0, len(list))
	for i := range list {
		if TemporalValid(&list[i].Chunk, year) {
			kept = append(kept, list[i])
		}
	}
	return kept
}
