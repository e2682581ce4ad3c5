package domain

// SafetyVerdict is the outcome of screening one query against the unsafe
// intent matrix and keyword list. Similarity is the maximum cosine
// similarity observed, in [0, 1]; MatchedKeyword is set when the keyword
// path triggered; Degraded is set when the embedding call failed and only
// the keyword scan ran.
type SafetyVerdict struct {
	Unsafe         bool
	Similarity     float64
	MatchedKeyword string
	Degraded       bool
}
