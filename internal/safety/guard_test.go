package safety

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

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

func TestGuardCheck_Similarity(t *testing.T) {
	ctx := context.Background()

	t.Run("identical vector is unsafe at an inclusive threshold", func(t *testing.T) {
		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, "câu hỏi").Return([]float32{1, 0, 0}, nil)

		guard := NewGuard(embedder, GuardConfig{
			Matrix:    [][]float32{{0, 1, 0}, {1, 0, 0}},
			Threshold: 1.0,
		})
		verdict := guard.Check(ctx, "câu hỏi")

		assert.True(t, verdict.Unsafe)
		assert.InDelta(t, 1.0, verdict.Similarity, 1e-9)
		assert.Empty(t, verdict.MatchedKeyword)
		assert.False(t, verdict.Degraded)
	})

	t.Run("similarity below the default threshold is safe", func(t *testing.T) {
		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, "câu hỏi").Return([]float32{0.6, 0.8, 0}, nil)

		guard := NewGuard(embedder, GuardConfig{Matrix: [][]float32{{1, 0, 0}}})
		verdict := guard.Check(ctx, "câu hỏi")

		assert.False(t, verdict.Unsafe)
		assert.InDelta(t, 0.6, verdict.Similarity, 1e-6)
	})

	t.Run("negative similarity clamps to zero", func(t *testing.T) {
		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, "câu hỏi").Return([]float32{-1, 0}, nil)

		guard := NewGuard(embedder, GuardConfig{Matrix: [][]float32{{1, 0}}})
		verdict := guard.Check(ctx, "câu hỏi")

		assert.False(t, verdict.Unsafe)
		assert.Zero(t, verdict.Similarity)
	})

	t.Run("empty matrix contributes zero similarity", func(t *testing.T) {
		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, "câu hỏi").Return([]float32{1, 0}, nil)

		guard := NewGuard(embedder, GuardConfig{})
		verdict := guard.Check(ctx, "câu hỏi")

		assert.False(t, verdict.Unsafe)
		assert.Zero(t, verdict.Similarity)
	})

	t.Run("zero norm rows are dropped at construction", func(t *testing.T) {
		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, "câu hỏi").Return([]float32{1, 0}, nil)

		guard := NewGuard(embedder, GuardConfig{Matrix: [][]float32{{0, 0}, {0, 2}}})
		verdict := guard.Check(ctx, "câu hỏi")

		assert.False(t, verdict.Unsafe)
		assert.Zero(t, verdict.Similarity)
	})

	t.Run("rows are normalized so magnitude does not inflate the score", func(t *testing.T) {
		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, "câu hỏi").Return([]float32{1, 0}, nil)

		guard := NewGuard(embedder, GuardConfig{Matrix: [][]float32{{100, 0}}})
		verdict := guard.Check(ctx, "câu hỏi")

		assert.True(t, verdict.Unsafe)
		assert.InDelta(t, 1.0, verdict.Similarity, 1e-6)
	})
}

func TestGuardCheck_Keywords(t *testing.T) {
	ctx := context.Background()
	benign := []float32{0, 1}

	t.Run("reports the configured spelling", func(t *testing.T) {
		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, mock.Anything).Return(benign, nil)

		guard := NewGuard(embedder, GuardConfig{Matrix: [][]float32{{1, 0}}})
		verdict := guard.Check(ctx, "Hành vi này bị nghiêm cấm phải không?")

		assert.True(t, verdict.Unsafe)
		assert.Equal(t, "bị nghiêm cấm", verdict.MatchedKeyword)
	})

	t.Run("matches without diacritics", func(t *testing.T) {
		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, mock.Anything).Return(benign, nil)

		guard := NewGuard(embedder, GuardConfig{Matrix: [][]float32{{1, 0}}})
		verdict := guard.Check(ctx, "hanh vi nay co vi pham khong")

		assert.True(t, verdict.Unsafe)
		assert.Equal(t, "vi phạm", verdict.MatchedKeyword)
	})

	t.Run("custom keyword list replaces the defaults", func(t *testing.T) {
		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, mock.Anything).Return(benign, nil)

		guard := NewGuard(embedder, GuardConfig{
			Matrix:   [][]float32{{1, 0}},
			Keywords: []string{"ma túy"},
		})

		verdict := guard.Check(ctx, "mua ma tuy o dau")
		assert.True(t, verdict.Unsafe)
		assert.Equal(t, "ma túy", verdict.MatchedKeyword)

		verdict = guard.Check(ctx, "điều này bị nghiêm cấm")
		assert.False(t, verdict.Unsafe)
	})
}

func TestGuardCheck_EmbeddingFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("keyword hit still flags the query", func(t *testing.T) {
		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

		guard := NewGuard(embedder, GuardConfig{Matrix: [][]float32{{1, 0}}})
		verdict := guard.Check(ctx, "hành vi bị nghiêm cấm")

		assert.True(t, verdict.Unsafe)
		assert.True(t, verdict.Degraded)
		assert.Zero(t, verdict.Similarity)
		assert.Equal(t, "bị nghiêm cấm", verdict.MatchedKeyword)
	})

	t.Run("no keyword hit stays safe but degraded", func(t *testing.T) {
		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

		guard := NewGuard(embedder, GuardConfig{Matrix: [][]float32{{1, 0}}})
		verdict := guard.Check(ctx, "thủ đô của Việt Nam là gì")

		assert.False(t, verdict.Unsafe)
		assert.True(t, verdict.Degraded)
		assert.Zero(t, verdict.Similarity)
	})
}
