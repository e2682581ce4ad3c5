package jobs

import (
	"context"
	"log"
	"strings"

	"github.com/khaothi-ai/khaothi/internal/domain"
)

// LogSink writes audit records to the process log. It backs deployments that
// run without Postgres, so answered queries still leave a trace.
type LogSink struct{}

func (LogSink) InsertBatch(_ context.Context, records []domain.AuditRecord) error {
	for _, rec := range records {
		log.Printf("audit: qid=%s mode=%s unsafe=%t similarity=%.3f degraded=%s chunks=%d duration_ms=%d",
			rec.QID,
			rec.Mode,
			rec.Unsafe,
			rec.Similarity,
			strings.Join(rec.Degraded, ","),
			len(rec.ChunkIDs),
			rec.DurationMs,
		)
	}
	return nil
}
