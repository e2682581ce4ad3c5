package domain

import "time"

// Degradation flags recorded on predictions and audit records. Each names
// the dependency or step that failed over to its fallback path.
const (
	DegradeSafetyEmbedding = "safety_embedding"
	DegradeLexicalLeg      = "lexical_leg"
	DegradeSemanticLeg     = "semantic_leg"
	DegradeChat            = "chat"
	DegradeAnswerParse     = "answer_parse"
	DegradeNoOptions       = "no_options"
)

// AuditRecord captures one answered question for offline review. Records are
// emitted on a non-blocking channel and flushed in the background; losing one
// under load is acceptable, blocking an answer is not.
type AuditRecord struct {
	ID         string
	QID        string
	Query      string
	Mode       RouteMode
	Unsafe     bool
	Similarity float64
	Degraded   []string
	ChunkIDs   []string
	DurationMs int64
	CreatedAt  time.Time
}
