package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/khaothi-ai/khaothi/internal/api/handlers"
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

func setupRouter() (http.Handler, *MockPipelineService, *MockRouterService, *MockSafetyService) {
	pipelineSvc := new(MockPipelineService)
	engineSvc := new(MockSearchService)
	routerSvc := new(MockRouterService)
	guardSvc := new(MockSafetyService)

	cfg := RouterConfig{
		QueryHandler:  handlers.NewQueryHandler(pipelineSvc, engineSvc, routerSvc, guardSvc),
		HealthHandler: handlers.NewHealthHandler(nil),
	}

	return NewRouter(cfg), pipelineSvc, routerSvc, guardSvc
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_AnswerEndpoint(t *testing.T) {
	router, pipelineSvc, _, _ := setupRouter()

	pipelineSvc.On("Answer", mock.Anything, mock.Anything).Return(domain.Prediction{
		QID:    "q1",
		Answer: "C",
		Mode:   domain.RouteModeRAG,
	})

	body := `{"qid":"q1","question":"Sông nào dài nhất Việt Nam?","choices":["a","b","c","d"]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/answer", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Contains(t, w.Body.String(), `"answer":"C"`)
	pipelineSvc.AssertExpectations(t)
}

func TestRouter_RouteEndpoint(t *testing.T) {
	router, _, routerSvc, _ := setupRouter()

	routerSvc.On("Route", "Tính tích phân").Return(domain.RouteDecision{
		Mode:           domain.RouteModeStem,
		MatchedPattern: "tích phân",
	})

	body := `{"query":"Tính tích phân"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/route", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mode":"STEM"`)
}

func TestRouter_SafetyCheckEndpoint(t *testing.T) {
	router, _, _, guardSvc := setupRouter()

	guardSvc.On("Check", mock.Anything, "câu hỏi bình thường").Return(domain.SafetyVerdict{})

	body := `{"query":"câu hỏi bình thường"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/safety/check", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"unsafe":false`)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/unknown", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_BodyLimit(t *testing.T) {
	router, _, _, _ := setupRouter()

	huge := strings.Repeat("x", 2*1024*1024)
	req := httptest.NewRequest(http.MethodPost, "/v1/answer", strings.NewReader(huge))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
