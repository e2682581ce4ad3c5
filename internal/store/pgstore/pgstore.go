// Package pgstore implements the knowledge store on PostgreSQL with the
// pgvector extension. The lexical leg uses the built-in full text search
// over a generated tsvector column; the semantic leg orders by cosine
// distance on the embedding column.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/store"
)

// Store serves both retrieval legs from the chunks table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const chunkColumns = `id, text, source, type, valid_from, valid_until, region`

// LexicalSearch matches chunks against a websearch-style query and scores
// them with ts_rank_cd. An empty or stopword-only query matches nothing.
func (s *Store) LexicalSearch(ctx context.Context, query string, f store.Filter, limit int) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		limit = 20
	}

	sql := `
		SELECT ` + chunkColumns + `, ts_rank_cd(tsv, q)::float8 AS score
		FROM chunks, websearch_to_tsquery('simple', $1) AS q
		WHERE tsv @@ q`
	args := []interface{}{query}

	sql, args = appendFilter(sql, args, f)

	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY score DESC, id ASC LIMIT $%d", len(args))

	return s.queryScored(ctx, sql, args, domain.ScoreSourceLexical)
}

// VectorSearch orders chunks by cosine distance to the query vector and
// reports similarity as 1 / (1 + distance).
func (s *Store) VectorSearch(ctx context.Context, vec []float32, f store.Filter, limit int) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		limit = 20
	}

	sql := `
		SELECT ` + chunkColumns + `, 1.0 / (1.0 + (embedding <=> $1)) AS score
		FROM chunks
		WHERE embedding IS NOT NULL`
	args := []interface{}{pgvector.NewVector(vec)}

	sql, args = appendFilter(sql, args, f)

	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY embedding <=> $1 ASC, id ASC LIMIT $%d", len(args))

	return s.queryScored(ctx, sql, args, domain.ScoreSourceSemantic)
}

func (s *Store) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	var c domain.Chunk
	var source *string
	var chunkType string
	err := s.pool.QueryRow(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Text, &source, &chunkType, &c.ValidFrom, &c.ValidUntil, &c.Region)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, err
	}
	if source != nil {
		c.Source = *source
	}
	c.Type = domain.ChunkType(chunkType)
	return &c, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ReplaceChunks swaps the whole corpus in one transaction. The table is
// empty only inside the transaction, so readers never observe a partial
// index.
func (s *Store) ReplaceChunks(ctx context.Context, chunks []domain.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks`); err != nil {
		return err
	}
	for i := range chunks {
		if err := insertChunk(ctx, tx, &chunks[i]); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// UpsertChunks inserts chunks, overwriting rows that share an identifier.
func (s *Store) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range chunks {
		if err := insertChunk(ctx, tx, &chunks[i]); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertChunk(ctx context.Context, tx pgx.Tx, c *domain.Chunk) error {
	c.Normalize()
	if err := domain.ValidateChunk(c); err != nil {
		return err
	}
	createdAt := time.Now().UTC()
	_, err := tx.Exec(ctx,
		`INSERT INTO chunks (id, text, source, type, valid_from, valid_until, region, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   text = EXCLUDED.text,
		   source = EXCLUDED.source,
		   type = EXCLUDED.type,
		   valid_from = EXCLUDED.valid_from,
		   valid_until = EXCLUDED.valid_until,
		   region = EXCLUDED.region,
		   embedding = EXCLUDED.embedding`,
		c.ID, c.Text, c.Source, string(c.Type), c.ValidFrom, c.ValidUntil, c.Region,
		pgvector.NewVector(c.Embedding), createdAt,
	)
	return err
}

// VerifyAlignment checks that every chunk carries an embedding of the
// expected dimensionality. It runs once at startup; a store that fails it
// must not serve queries.
func (s *Store) VerifyAlignment(ctx context.Context, wantDim int) error {
	var total, embedded, dim int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), count(embedding), coalesce(max(vector_dims(embedding)), 0) FROM chunks`,
	).Scan(&total, &embedded, &dim)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}
	if embedded != total {
		return domain.NewDomainErrorWithCause(domain.ErrCodeConfig,
			fmt.Sprintf("%d of %d chunks have no embedding", total-embedded, total),
			domain.ErrIndexMisaligned)
	}
	if dim != wantDim {
		return domain.NewDomainErrorWithCause(domain.ErrCodeConfig,
			fmt.Sprintf("index stores %d-dimensional embeddings, expected %d", dim, wantDim),
			domain.ErrDimensionMismatch)
	}
	return nil
}

func (s *Store) queryScored(ctx context.Context, sql string, args []interface{}, src domain.ScoreSource) ([]domain.ScoredChunk, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.ScoredChunk, 0)
	for rows.Next() {
		var sc domain.ScoredChunk
		var source *string
		var chunkType string
		if err := rows.Scan(&sc.Chunk.ID, &sc.Chunk.Text, &source, &chunkType,
			&sc.Chunk.ValidFrom, &sc.Chunk.ValidUntil, &sc.Chunk.Region, &sc.Score); err != nil {
			return nil, err
		}
		if source != nil {
			sc.Chunk.Source = *source
		}
		sc.Chunk.Type = domain.ChunkType(chunkType)
		sc.Source = src
		results = append(results, sc)
	}

	return results, rows.Err()
}

// appendFilter extends a WHERE clause with the optional filter conditions.
// Region filters always admit nationwide chunks alongside the requested
// region.
func appendFilter(sql string, args []interface{}, f store.Filter) (string, []interface{}) {
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		args = append(args, types)
		sql += fmt.Sprintf(" AND type = ANY($%d)", len(args))
	}
	if f.Region != "" {
		args = append(args, []string{domain.RegionAll, f.Region})
		sql += fmt.Sprintf(" AND region = ANY($%d)", len(args))
	}
	if len(f.Entities) > 0 {
		patterns := make([]string, len(f.Entities))
		for i, e := range f.Entities {
			patterns[i] = "%" + e + "%"
		}
		args = append(args, patterns)
		sql += fmt.Sprintf(" AND text ILIKE ANY($%d)", len(args))
	}
	return sql, args
}
