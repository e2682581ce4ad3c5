package pgstore

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khaothi-ai/khaothi/internal/domain"
)

// AuditLogRepository stores one row per answered query for evaluation and
// drift analysis.
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

func NewAuditLogRepository(pool *pgxpool.Pool) *AuditLogRepository {
	return &AuditLogRepository{pool: pool}
}

// InsertBatch writes a batch of audit records in one transaction. Records
// are best effort; callers drop them rather than block query serving.
func (r *AuditLogRepository) InsertBatch(ctx context.Context, records []domain.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, rec := range records {
		degradedJSON, _ := json.Marshal(rec.Degraded)
		chunkIDsJSON, _ := json.Marshal(rec.ChunkIDs)

		_, err := tx.Exec(ctx,
			`INSERT INTO query_logs (id, qid, query, mode, unsafe, similarity, degraded, chunk_ids, duration_ms, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			rec.ID,
			nullableString(rec.QID),
			rec.Query,
			string(rec.Mode),
			rec.Unsafe,
			rec.Similarity,
			degradedJSON,
			chunkIDsJSON,
			rec.DurationMs,
			rec.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
