package search

import "github.com/khaothi-ai/khaothi/internal/domain"

// Profile tunes retrieval for one subject domain. Profiles are selected by
// the router's category hint; a query without a hint uses the base profile.
type Profile struct {
	TopK           int
	FanOut         int
	LexicalWeight  float64
	SemanticWeight float64
	UseTemporal    bool
}

// DefaultProfiles derives the per-category profiles from the base profile.
// Law leans on the lexical leg: statute queries name documents and article
// numbers almost verbatim, and validity windows matter most there.
func DefaultProfiles(base Profile) map[domain.ChunkType]Profile {
	law := base
	law.SemanticWeight = 0.8 * base.SemanticWeight

	return map[domain.ChunkType]Profile{
		domain.ChunkTypeLaw: law,
	}
}
