package domain

import "time"

// ScoreSource tags which retrieval leg produced a score
type ScoreSource string

const (
	ScoreSourceLexical  ScoreSource = "LEXICAL"
	ScoreSourceSemantic ScoreSource = "SEMANTIC"
	ScoreSourceFused    ScoreSource = "FUSED"
)

// ScoredChunk pairs a chunk with a relevance score for one query. Transient;
// discarded after the query completes.
type ScoredChunk struct {
	Chunk  Chunk
	Score  float64
	Source ScoreSource
}

// Prediction is the final outcome for one question: the answer letter plus
// the signals needed for offline auditing.
type Prediction struct {
	QID      string
	Answer   string
	Mode     RouteMode
	Unsafe   bool
	Degraded []string
	Elapsed  time.Duration
}
