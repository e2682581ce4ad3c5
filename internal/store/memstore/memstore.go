// Package memstore implements the knowledge store over index artifacts held
// entirely in memory. The lexical leg is an in-process BM25 index, the
// semantic leg a brute-force cosine scan. Everything is immutable after
// load, so all methods are safe for concurrent readers.
package memstore

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/store"
)

// Store holds the chunk corpus, its embeddings and the lexical index.
type Store struct {
	chunks  []domain.Chunk
	byID    map[string]int
	vectors [][]float32
	norms   []float64
	dim     int
	lex     *lexicalIndex
}

// New builds a store from chunks carrying inline embeddings. Every chunk
// must be embedded with the same dimensionality.
func New(chunks []domain.Chunk) (*Store, error) {
	vectors := make([][]float32, len(chunks))
	stripped := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.Normalize()
		if err := domain.ValidateChunk(&c); err != nil {
			return nil, err
		}
		vectors[i] = c.Embedding
		c.Embedding = nil
		stripped[i] = c
	}
	return build(stripped, vectors)
}

// Load reads the chunk and vector artifacts from an index directory and
// verifies they are aligned.
func Load(dir string) (*Store, error) {
	chunks, err := ReadChunks(filepath.Join(dir, ChunksFile))
	if err != nil {
		return nil, err
	}
	_, vectors, err := ReadVectors(filepath.Join(dir, VectorsFile))
	if err != nil {
		return nil, err
	}
	return build(chunks, vectors)
}

func build(chunks []domain.Chunk, vectors [][]float32) (*Store, error) {
	if len(chunks) != len(vectors) {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig,
			fmt.Sprintf("%d chunks but %d vectors", len(chunks), len(vectors)),
			domain.ErrIndexMisaligned)
	}

	s := &Store{
		chunks:  chunks,
		byID:    make(map[string]int, len(chunks)),
		vectors: vectors,
		norms:   make([]float64, len(vectors)),
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		if len(vectors[i]) == 0 {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig,
				fmt.Sprintf("chunk %s has no embedding", chunks[i].ID),
				domain.ErrIndexMisaligned)
		}
		if s.dim == 0 {
			s.dim = len(vectors[i])
		}
		if len(vectors[i]) != s.dim {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig,
				fmt.Sprintf("chunk %s has %d dimensions, expected %d", chunks[i].ID, len(vectors[i]), s.dim),
				domain.ErrDimensionMismatch)
		}
		s.byID[chunks[i].ID] = i
		s.norms[i] = vectorNorm(vectors[i])
		texts[i] = chunks[i].Text
	}

	s.lex = newLexicalIndex(texts)
	return s, nil
}

// Dim returns the embedding dimensionality of the loaded index, 0 when the
// index is empty.
func (s *Store) Dim() int {
	return s.dim
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return len(s.chunks), nil
}

func (s *Store) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	i, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrChunkNotFound
	}
	c := s.chunks[i]
	return &c, nil
}

// LexicalSearch runs BM25 over the corpus and returns matches ordered by
// descending score, chunk ID ascending on ties.
func (s *Store) LexicalSearch(ctx context.Context, query string, f store.Filter, limit int) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	scores := s.lex.search(query)

	hits := make([]scoredIndex, 0, len(scores))
	for doc, score := range scores {
		if !matchesFilter(&s.chunks[doc], f) {
			continue
		}
		hits = append(hits, scoredIndex{idx: doc, score: score})
	}

	return s.collect(hits, limit, domain.ScoreSourceLexical), nil
}

// VectorSearch scans every chunk and scores it as 1 / (1 + d) where d is
// the cosine distance to the query vector.
func (s *Store) VectorSearch(ctx context.Context, vec []float32, f store.Filter, limit int) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if s.dim > 0 && len(vec) != s.dim {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig,
			fmt.Sprintf("query vector has %d dimensions, index has %d", len(vec), s.dim),
			domain.ErrDimensionMismatch)
	}

	queryNorm := vectorNorm(vec)
	hits := make([]scoredIndex, 0, len(s.chunks))
	for i := range s.chunks {
		if !matchesFilter(&s.chunks[i], f) {
			continue
		}
		sim := cosineSimilarity(vec, s.vectors[i], queryNorm, s.norms[i])
		distance := 1 - sim
		hits = append(hits, scoredIndex{idx: i, score: 1.0 / (1.0 + distance)})
	}

	return s.collect(hits, limit, domain.ScoreSourceSemantic), nil
}

type scoredIndex struct {
	idx   int
	score float64
}

func (s *Store) collect(hits []scoredIndex, limit int, src domain.ScoreSource) []domain.ScoredChunk {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return s.chunks[hits[i].idx].ID < s.chunks[hits[j].idx].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]domain.ScoredChunk, len(hits))
	for i, h := range hits {
		results[i] = domain.ScoredChunk{
			Chunk:  s.chunks[h.idx],
			Score:  h.score,
			Source: src,
		}
	}
	return results
}

// matchesFilter mirrors the SQL filter semantics of the Postgres backend:
// region filters admit nationwide chunks, entity filters require a
// case-insensitive substring match on the chunk text.
func matchesFilter(c *domain.Chunk, f store.Filter) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if c.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Region != "" && c.Region != domain.RegionAll && c.Region != f.Region {
		return false
	}
	if len(f.Entities) > 0 {
		text := strings.ToLower(c.Text)
		found := false
		for _, e := range f.Entities {
			if e != "" && strings.Contains(text, strings.ToLower(e)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
