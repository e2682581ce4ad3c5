package domain

import "fmt"

// ChunkType categorizes a knowledge chunk by subject domain
type ChunkType string

const (
	ChunkTypeLaw       ChunkType = "law"
	ChunkTypeHistory   ChunkType = "history"
	ChunkTypeGeography ChunkType = "geography"
	ChunkTypeCulture   ChunkType = "culture"
	ChunkTypeMath      ChunkType = "math"
	ChunkTypeGeneral   ChunkType = "general"
)

// Validity window sentinels. ValidUntilMax marks chunks that never expire.
const (
	ValidFromDefault = 1900
	ValidUntilMax    = 9999
)

// RegionAll marks a chunk that applies nationwide rather than to one province.
const RegionAll = "ALL"

// Chunk is an immutable unit of retrievable knowledge. Chunks are created
// during offline indexing and never mutated at query time; the lexical and
// vector indices over them must stay aligned (same ordinal position maps to
// the same chunk in both).
type Chunk struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Source     string    `json:"source,omitempty"`
	Type       ChunkType `json:"type,omitempty"`
	ValidFrom  int       `json:"valid_from,omitempty"`
	ValidUntil int       `json:"valid_until,omitempty"`
	Region     string    `json:"region,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// Normalize fills zero-valued metadata with the documented defaults.
func (c *Chunk) Normalize() {
	if c.Type == "" {
		c.Type = ChunkTypeGeneral
	}
	if c.ValidFrom == 0 {
		c.ValidFrom = ValidFromDefault
	}
	if c.ValidUntil == 0 {
		c.ValidUntil = ValidUntilMax
	}
	if c.Region == "" {
		c.Region = RegionAll
	}
}

// ValidateChunk validates a Chunk instance before indexing
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}

	if c.Text == "" {
		return fmt.Errorf("chunk Text is required")
	}

	if !isValidChunkType(c.Type) {
		return fmt.Errorf("chunk Type is invalid: %s", c.Type)
	}

	return nil
}

// isValidChunkType checks if a ChunkType is valid
func isValidChunkType(t ChunkType) bool {
	switch t {
	case ChunkTypeLaw, ChunkTypeHistory, ChunkTypeGeography,
		ChunkTypeCulture, ChunkTypeMath, ChunkTypeGeneral:
		return true
	}
	return false
}
