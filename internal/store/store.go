// Package store defines the knowledge store contract shared by the search
// engine and its backends. Stores are read-only at query time; chunks are
// written only by the offline indexing commands.
package store

import (
	"context"

	"github.com/khaothi-ai/khaothi/internal/domain"
)

// Filter narrows the search universe before either retrieval leg runs.
// Types restricts by subject domain, Region admits nationwide chunks plus
// the given region, and Entities requires lexical candidates to contain at
// least one of the given tokens.
type Filter struct {
	Types    []domain.ChunkType
	Region   string
	Entities []string
}

// IsZero reports whether the filter imposes no restriction.
func (f Filter) IsZero() bool {
	return len(f.Types) == 0 && f.Region == "" && len(f.Entities) == 0
}

// KnowledgeStore serves the two retrieval legs over one aligned chunk set.
// Implementations must be safe for concurrent readers.
type KnowledgeStore interface {
	// LexicalSearch runs a keyword search and returns chunks ordered by
	// descending lexical score.
	LexicalSearch(ctx context.Context, query string, f Filter, limit int) ([]domain.ScoredChunk, error)
	// VectorSearch returns chunks ordered by descending similarity to the
	// query vector.
	VectorSearch(ctx context.Context, vec []float32, f Filter, limit int) ([]domain.ScoredChunk, error)
	// GetChunk fetches a single chunk by identifier.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)
	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (int, error)
}
