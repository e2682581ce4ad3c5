package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/khaothi-ai/khaothi/internal/api"
	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/search"
)

type PipelineService interface {
	Answer(ctx context.Context, q domain.Question) domain.Prediction
}

type SearchService interface {
	Search(ctx context.Context, in search.Input) search.Output
}

type RouterService interface {
	Route(queryText string) domain.RouteDecision
}

type SafetyService interface {
	Check(ctx context.Context, queryText string) domain.SafetyVerdict
}

// QueryHandler serves the query surface: answering, retrieval, routing and
// safety screening.
type QueryHandler struct {
	pipeline PipelineService
	engine   SearchService
	router   RouterService
	guard    SafetyService
}

func NewQueryHandler(pipeline PipelineService, engine SearchService, router RouterService, guard SafetyService) *QueryHandler {
	return &QueryHandler{pipeline: pipeline, engine: engine, router: router, guard: guard}
}

type AnswerRequest struct {
	QID      string   `json:"qid,omitempty"`
	Question string   `json:"question"`
	Choices  []string `json:"choices"`
}

type AnswerResponse struct {
	QID        string   `json:"qid,omitempty"`
	Answer     string   `json:"answer"`
	Mode       string   `json:"mode"`
	Unsafe     bool     `json:"unsafe"`
	Degraded   []string `json:"degraded,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

type SearchRequest struct {
	Query string `json:"query"`
	Year  int    `json:"year,omitempty"`
	TopK  int    `json:"top_k,omitempty"`
}

type SearchResultItem struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Source     string  `json:"source,omitempty"`
	Type       string  `json:"type,omitempty"`
	ValidFrom  int     `json:"valid_from,omitempty"`
	ValidUntil int     `json:"valid_until,omitempty"`
	Score      float64 `json:"score"`
}

type SearchResponse struct {
	Results          []*SearchResultItem `json:"results"`
	Year             int                 `json:"year,omitempty"`
	Category         string              `json:"category,omitempty"`
	Entities         []string            `json:"entities,omitempty"`
	LexicalDegraded  bool                `json:"lexical_degraded,omitempty"`
	SemanticDegraded bool                `json:"semantic_degraded,omitempty"`
	TemporalApplied  bool                `json:"temporal_applied,omitempty"`
}

type RouteRequest struct {
	Query string `json:"query"`
}

type RouteResponse struct {
	Mode           string   `json:"mode"`
	MatchedPattern string   `json:"matched_pattern,omitempty"`
	Year           int      `json:"year,omitempty"`
	Entities       []string `json:"entities,omitempty"`
	Category       string   `json:"category,omitempty"`
}

type SafetyCheckRequest struct {
	Query string `json:"query"`
}

type SafetyCheckResponse struct {
	Unsafe         bool    `json:"unsafe"`
	Similarity     float64 `json:"similarity"`
	MatchedKeyword string  `json:"matched_keyword,omitempty"`
	Degraded       bool    `json:"degraded,omitempty"`
}

// Answer runs the full pipeline for one question and returns the prediction.
func (h *QueryHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		api.HandleError(w, domain.ErrEmptyQuery)
		return
	}
	if len(req.Choices) == 0 {
		api.HandleError(w, domain.ErrNoOptions)
		return
	}

	pred := h.pipeline.Answer(r.Context(), domain.Question{
		ID:      req.QID,
		Text:    req.Question,
		Options: req.Choices,
	})

	api.Success(w, http.StatusOK, AnswerResponse{
		QID:        pred.QID,
		Answer:     pred.Answer,
		Mode:       string(pred.Mode),
		Unsafe:     pred.Unsafe,
		Degraded:   pred.Degraded,
		DurationMs: pred.Elapsed.Milliseconds(),
	})
}

// Search retrieves chunks for a query the same way the RAG arm would: the
// router supplies entities and category, the request may pin the year and
// result count. The guard is not consulted; this is a diagnostic surface.
func (h *QueryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		api.HandleError(w, domain.ErrEmptyQuery)
		return
	}

	decision := h.router.Route(req.Query)
	year := decision.Year
	if req.Year > 0 {
		year = req.Year
	}

	out := h.engine.Search(r.Context(), search.Input{
		Query:    req.Query,
		Year:     year,
		Entities: decision.Entities,
		Category: decision.Category,
		TopK:     req.TopK,
	})

	results := make([]*SearchResultItem, len(out.Results))
	for i, sc := range out.Results {
		results[i] = &SearchResultItem{
			ID:         sc.Chunk.ID,
			Text:       sc.Chunk.Text,
			Source:     sc.Chunk.Source,
			Type:       string(sc.Chunk.Type),
			ValidFrom:  sc.Chunk.ValidFrom,
			ValidUntil: sc.Chunk.ValidUntil,
			Score:      sc.Score,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Results:          results,
		Year:             year,
		Category:         string(decision.Category),
		Entities:         decision.Entities,
		LexicalDegraded:  out.LexicalDegraded,
		SemanticDegraded: out.SemanticDegraded,
		TemporalApplied:  out.TemporalApplied,
	})
}

// Route classifies a query without executing it.
func (h *QueryHandler) Route(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		api.HandleError(w, domain.ErrEmptyQuery)
		return
	}

	decision := h.router.Route(req.Query)

	api.Success(w, http.StatusOK, RouteResponse{
		Mode:           string(decision.Mode),
		MatchedPattern: decision.MatchedPattern,
		Year:           decision.Year,
		Entities:       decision.Entities,
		Category:       string(decision.Category),
	})
}

// SafetyCheck screens a query and returns the verdict without answering.
func (h *QueryHandler) SafetyCheck(w http.ResponseWriter, r *http.Request) {
	var req SafetyCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		api.HandleError(w, domain.ErrEmptyQuery)
		return
	}

	verdict := h.guard.Check(r.Context(), req.Query)

	api.Success(w, http.StatusOK, SafetyCheckResponse{
		Unsafe:         verdict.Unsafe,
		Similarity:     verdict.Similarity,
		MatchedKeyword: verdict.MatchedKeyword,
		Degraded:       verdict.Degraded,
	})
}
