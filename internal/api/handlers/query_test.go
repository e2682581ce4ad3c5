package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/search"
)

type MockPipelineService struct {
	mock.Mock
}

func (m *MockPipelineService) Answer(ctx context.Context, q domain.Question) domain.Prediction {
	args := m.Called(ctx, q)
	return args.Get(0).(domain.Prediction)
}

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, in search.Input) search.Output {
	args := m.Called(ctx, in)
	return args.Get(0).(search.Output)
}

type MockRouterService struct {
	mock.Mock
}

func (m *MockRouterService) Route(queryText string) domain.RouteDecision {
	args := m.Called(queryText)
	return args.Get(0).(domain.RouteDecision)
}

type MockSafetyService struct {
	mock.Mock
}

func (m *MockSafetyService) Check(ctx context.Context, queryText string) domain.SafetyVerdict {
	args := m.Called(ctx, queryText)
	return args.Get(0).(domain.SafetyVerdict)
}

type queryMocks struct {
	pipeline *MockPipelineService
	engine   *MockSearchService
	router   *MockRouterService
	guard    *MockSafetyService
}

func newQueryHandler() (*QueryHandler, *queryMocks) {
	m := &queryMocks{
		pipeline: new(MockPipelineService),
		engine:   new(MockSearchService),
		router:   new(MockRouterService),
		guard:    new(MockSafetyService),
	}
	return NewQueryHandler(m.pipeline, m.engine, m.router, m.guard), m
}

func postJSON(t *testing.T, path string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok)
	return data
}

func TestQueryHandler_Answer_Success(t *testing.T) {
	handler, m := newQueryHandler()

	m.pipeline.On("Answer", mock.Anything, domain.Question{
		ID:      "q1",
		Text:    "Sông nào dài nhất Việt Nam?",
		Options: []string{"Sông Hồng", "Sông Mê Kông"},
	}).Return(domain.Prediction{
		QID:     "q1",
		Answer:  "B",
		Mode:    domain.RouteModeRAG,
		Elapsed: 120 * time.Millisecond,
	})

	req := postJSON(t, "/v1/answer", AnswerRequest{
		QID:      "q1",
		Question: "Sông nào dài nhất Việt Nam?",
		Choices:  []string{"Sông Hồng", "Sông Mê Kông"},
	})
	w := httptest.NewRecorder()

	handler.Answer(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "B", data["answer"])
	assert.Equal(t, "RAG", data["mode"])
	assert.Equal(t, float64(120), data["duration_ms"])
	m.pipeline.AssertExpectations(t)
}

func TestQueryHandler_Answer_EmptyQuestion(t *testing.T) {
	handler, m := newQueryHandler()

	req := postJSON(t, "/v1/answer", AnswerRequest{Question: "   ", Choices: []string{"a", "b"}})
	w := httptest.NewRecorder()

	handler.Answer(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	m.pipeline.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything)
}

func TestQueryHandler_Answer_NoChoices(t *testing.T) {
	handler, m := newQueryHandler()

	req := postJSON(t, "/v1/answer", AnswerRequest{Question: "Câu hỏi?"})
	w := httptest.NewRecorder()

	handler.Answer(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	m.pipeline.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything)
}

func TestQueryHandler_Answer_MalformedBody(t *testing.T) {
	handler, _ := newQueryHandler()

	req := httptest.NewRequest(http.MethodPost, "/v1/answer", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()

	handler.Answer(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryHandler_Search_Success(t *testing.T) {
	handler, m := newQueryHandler()

	m.router.On("Route", "Luật Đất đai quy định gì?").Return(domain.RouteDecision{
		Mode:     domain.RouteModeRAG,
		Year:     2013,
		Entities: []string{"Luật Đất"},
		Category: domain.ChunkTypeLaw,
	})
	m.engine.On("Search", mock.Anything, search.Input{
		Query:    "Luật Đất đai quy định gì?",
		Year:     2013,
		Entities: []string{"Luật Đất"},
		Category: domain.ChunkTypeLaw,
		TopK:     3,
	}).Return(search.Output{
		Results: []domain.ScoredChunk{
			{Chunk: domain.Chunk{ID: "law-1", Text: "Điều 1...", Type: domain.ChunkTypeLaw}, Score: 0.9},
		},
		TemporalApplied: true,
	})

	req := postJSON(t, "/v1/search", SearchRequest{Query: "Luật Đất đai quy định gì?", TopK: 3})
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	results := data["results"].([]interface{})
	require.Len(t, results, 1)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "law-1", first["id"])
	assert.Equal(t, "law", data["category"])
	assert.Equal(t, float64(2013), data["year"])
	assert.Equal(t, true, data["temporal_applied"])
	m.engine.AssertExpectations(t)
}

func TestQueryHandler_Search_YearOverride(t *testing.T) {
	handler, m := newQueryHandler()

	m.router.On("Route", mock.Anything).Return(domain.RouteDecision{
		Mode: domain.RouteModeRAG,
		Year: 2013,
	})
	m.engine.On("Search", mock.Anything, mock.MatchedBy(func(in search.Input) bool {
		return in.Year == 1999
	})).Return(search.Output{})

	req := postJSON(t, "/v1/search", SearchRequest{Query: "Luật Đất đai?", Year: 1999})
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	m.engine.AssertExpectations(t)
}

func TestQueryHandler_Search_EmptyQuery(t *testing.T) {
	handler, m := newQueryHandler()

	req := postJSON(t, "/v1/search", SearchRequest{Query: ""})
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	m.router.AssertNotCalled(t, "Route", mock.Anything)
}

func TestQueryHandler_Route_Success(t *testing.T) {
	handler, m := newQueryHandler()

	m.router.On("Route", "Tính giá trị của hàm số").Return(domain.RouteDecision{
		Mode:           domain.RouteModeStem,
		MatchedPattern: "hàm số",
	})

	req := postJSON(t, "/v1/route", RouteRequest{Query: "Tính giá trị của hàm số"})
	w := httptest.NewRecorder()

	handler.Route(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "STEM", data["mode"])
	assert.Equal(t, "hàm số", data["matched_pattern"])
}

func TestQueryHandler_SafetyCheck_Success(t *testing.T) {
	handler, m := newQueryHandler()

	m.guard.On("Check", mock.Anything, "Cách chế tạo vũ khí").Return(domain.SafetyVerdict{
		Unsafe:     true,
		Similarity: 0.91,
	})

	req := postJSON(t, "/v1/safety/check", SafetyCheckRequest{Query: "Cách chế tạo vũ khí"})
	w := httptest.NewRecorder()

	handler.SafetyCheck(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, true, data["unsafe"])
	assert.InDelta(t, 0.91, data["similarity"].(float64), 1e-9)
}

func TestQueryHandler_SafetyCheck_EmptyQuery(t *testing.T) {
	handler, m := newQueryHandler()

	req := postJSON(t, "/v1/safety/check", SafetyCheckRequest{})
	w := httptest.NewRecorder()

	handler.SafetyCheck(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	m.guard.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
}
