package search

import "github.com/khaothi-ai/khaothi/internal/domain"

// TemporalValid reports whether a chunk's validity window covers the target
// year. A zero year means the query carries no temporal cue, and a corrupt
// window (ValidFrom after ValidUntil) imposes no constraint; both admit the
// chunk.
func TemporalValid(c *domain.Chunk, targetYear int) bool {
	if targetYear == 0 {
		return true
	}
	if c.ValidFrom > c.ValidUntil {
		return true
	}
	return c.ValidFrom <= targetYear && targetYear <= c.ValidUntil
}

// TemporalRank scores how close a chunk's ValidFrom is to the target year,
// in (0, 1] and monotonically decreasing with distance. It breaks fusion
// ties only; it never excludes a chunk.
func TemporalRank(c *domain.Chunk, targetYear int) float64 {
	if targetYear == 0 {
		return 1
	}
	delta := c.ValidFrom - targetYear
	if delta < 0 {
		delta = -delta
	}
	return 1.0 / (1.0 + float64(delta))
}
