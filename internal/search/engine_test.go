package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/store"
)

// MockKnowledgeStore is a mock implementation of store.KnowledgeStore
type MockKnowledgeStore struct {
	mock.Mock
}

func (m *MockKnowledgeStore) LexicalSearch(ctx context.Context, query string, f store.Filter, limit int) ([]domain.ScoredChunk, error) {
	args := m.Called(ctx, query, f, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredChunk), args.Error(1)
}

func (m *MockKnowledgeStore) VectorSearch(ctx context.Context, vec []float32, f store.Filter, limit int) ([]domain.ScoredChunk, error) {
	args := m.Called(ctx, vec, f, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredChunk), args.Error(1)
}

func (m *MockKnowledgeStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chunk), args.Error(1)
}

func (m *MockKnowledgeStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockEmbedder is a mock implementation of llm.EmbeddingClient
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbedder) Dimensions() int {
	args := m.Called()
	return args.Int(0)
}

func scoredChunk(id string, score float64, src domain.ScoreSource) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk:  domain.Chunk{ID: id, ValidFrom: domain.ValidFromDefault, ValidUntil: domain.ValidUntilMax},
		Score:  score,
		Source: src,
	}
}

func TestEngine_Search(t *testing.T) {
	ctx := context.Background()
	queryVec := []float32{0.1, 0.2, 0.3}

	t.Run("fuses both legs", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedder := new(MockEmbedder)

		mockStore.On("LexicalSearch", mock.Anything, "quốc hội", store.Filter{}, 20).
			Return([]domain.ScoredChunk{
				scoredChunk("a", 4.0, domain.ScoreSourceLexical),
				scoredChunk("b", 3.0, domain.ScoreSourceLexical),
			}, nil)
		mockEmbedder.On("Embed", mock.Anything, "quốc hội").Return(queryVec, nil)
		mockStore.On("VectorSearch", mock.Anything, queryVec, store.Filter{}, 20).
			Return([]domain.ScoredChunk{
				scoredChunk("a", 0.95, domain.ScoreSourceSemantic),
				scoredChunk("c", 0.90, domain.ScoreSourceSemantic),
			}, nil)

		engine := NewEngine(mockStore, mockEmbedder, Config{})
		out := engine.Search(ctx, Input{Query: "quốc hội"})

		require.Len(t, out.Results, 3)
		assert.Equal(t, "a", out.Results[0].Chunk.ID)
		assert.Equal(t, domain.ScoreSourceFused, out.Results[0].Source)
		assert.False(t, out.LexicalDegraded)
		assert.False(t, out.SemanticDegraded)
		assert.False(t, out.TemporalApplied)
		mockStore.AssertExpectations(t)
		mockEmbedder.AssertExpectations(t)
	})

	t.Run("entities narrow only the lexical leg", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedder := new(MockEmbedder)

		entities := []string{"Hồ Chí Minh"}
		mockStore.On("LexicalSearch", mock.Anything, "q", store.Filter{Entities: entities}, 20).
			Return([]domain.ScoredChunk{}, nil)
		mockEmbedder.On("Embed", mock.Anything, "q").Return(queryVec, nil)
		mockStore.On("VectorSearch", mock.Anything, queryVec, store.Filter{}, 20).
			Return([]domain.ScoredChunk{}, nil)

		engine := NewEngine(mockStore, mockEmbedder, Config{})
		engine.Search(ctx, Input{Query: "q", Entities: entities})

		mockStore.AssertExpectations(t)
	})

	t.Run("category hint restricts both legs", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedder := new(MockEmbedder)

		lawFilter := store.Filter{Types: []domain.ChunkType{domain.ChunkTypeLaw}}
		mockStore.On("LexicalSearch", mock.Anything, "q", lawFilter, 20).
			Return([]domain.ScoredChunk{}, nil)
		mockEmbedder.On("Embed", mock.Anything, "q").Return(queryVec, nil)
		mockStore.On("VectorSearch", mock.Anything, queryVec, lawFilter, 20).
			Return([]domain.ScoredChunk{}, nil)

		engine := NewEngine(mockStore, mockEmbedder, Config{})
		engine.Search(ctx, Input{Query: "q", Category: domain.ChunkTypeLaw})

		mockStore.AssertExpectations(t)
	})

	t.Run("embedding failure degrades only the semantic leg", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedder := new(MockEmbedder)

		mockStore.On("LexicalSearch", mock.Anything, "q", store.Filter{}, 20).
			Return([]domain.ScoredChunk{scoredChunk("a", 4.0, domain.ScoreSourceLexical)}, nil)
		mockEmbedder.On("Embed", mock.Anything, "q").Return(nil, errors.New("provider down"))

		engine := NewEngine(mockStore, mockEmbedder, Config{})
		out := engine.Search(ctx, Input{Query: "q"})

		assert.True(t, out.SemanticDegraded)
		assert.False(t, out.LexicalDegraded)
		require.Len(t, out.Results, 1)
		assert.Equal(t, "a", out.Results[0].Chunk.ID)
		mockStore.AssertNotCalled(t, "VectorSearch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lexical failure degrades only the lexical leg", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedder := new(MockEmbedder)

		mockStore.On("LexicalSearch", mock.Anything, "q", store.Filter{}, 20).
			Return(nil, errors.New("store down"))
		mockEmbedder.On("Embed", mock.Anything, "q").Return(queryVec, nil)
		mockStore.On("VectorSearch", mock.Anything, queryVec, store.Filter{}, 20).
			Return([]domain.ScoredChunk{scoredChunk("b", 0.9, domain.ScoreSourceSemantic)}, nil)

		engine := NewEngine(mockStore, mockEmbedder, Config{})
		out := engine.Search(ctx, Input{Query: "q"})

		assert.True(t, out.LexicalDegraded)
		assert.False(t, out.SemanticDegraded)
		require.Len(t, out.Results, 1)
		assert.Equal(t, "b", out.Results[0].Chunk.ID)
	})

	t.Run("both legs degraded yields empty results without error", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedder := new(MockEmbedder)

		mockStore.On("LexicalSearch", mock.Anything, "q", store.Filter{}, 20).
			Return(nil, errors.New("store down"))
		mockEmbedder.On("Embed", mock.Anything, "q").Return(nil, errors.New("provider down"))

		engine := NewEngine(mockStore, mockEmbedder, Config{})
		out := engine.Search(ctx, Input{Query: "q"})

		assert.True(t, out.LexicalDegraded)
		assert.True(t, out.SemanticDegraded)
		assert.Empty(t, out.Results)
	})

	t.Run("target year excludes invalid chunks", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedder := new(MockEmbedder)

		expired := scoredChunk("expired", 5.0, domain.ScoreSourceLexical)
		expired.Chunk.ValidFrom = 1946
		expired.Chunk.ValidUntil = 1959
		current := scoredChunk("current", 4.0, domain.ScoreSourceLexical)
		current.Chunk.ValidFrom = 2013

		mockStore.On("LexicalSearch", mock.Anything, "q", store.Filter{}, 20).
			Return([]domain.ScoredChunk{expired, current}, nil)
		mockEmbedder.On("Embed", mock.Anything, "q").Return(queryVec, nil)
		mockStore.On("VectorSearch", mock.Anything, queryVec, store.Filter{}, 20).
			Return([]domain.ScoredChunk{}, nil)

		engine := NewEngine(mockStore, mockEmbedder, Config{})
		out := engine.Search(ctx, Input{Query: "q", Year: 2020})

		assert.True(t, out.TemporalApplied)
		require.Len(t, out.Results, 1)
		assert.Equal(t, "current", out.Results[0].Chunk.ID)
	})

	t.Run("topk override truncates and widens fan out", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedder := new(MockEmbedder)

		chunks := []domain.ScoredChunk{
			scoredChunk("a", 5.0, domain.ScoreSourceLexical),
			scoredChunk("b", 4.0, domain.ScoreSourceLexical),
			scoredChunk("c", 3.0, domain.ScoreSourceLexical),
		}
		mockStore.On("LexicalSearch", mock.Anything, "q", store.Filter{}, 40).
			Return(chunks, nil)
		mockEmbedder.On("Embed", mock.Anything, "q").Return(queryVec, nil)
		mockStore.On("VectorSearch", mock.Anything, queryVec, store.Filter{}, 40).
			Return([]domain.ScoredChunk{}, nil)

		engine := NewEngine(mockStore, mockEmbedder, Config{})
		out := engine.Search(ctx, Input{Query: "q", TopK: 10})

		assert.Len(t, out.Results, 3)
		mockStore.AssertExpectations(t)
	})
}
