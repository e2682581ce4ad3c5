//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaothi-ai/khaothi/internal/safety"
)

type answerResult struct {
	QID        string   `json:"qid"`
	Answer     string   `json:"answer"`
	Mode       string   `json:"mode"`
	Unsafe     bool     `json:"unsafe"`
	Degraded   []string `json:"degraded"`
	DurationMs int64    `json:"duration_ms"`
}

type searchResultItem struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Type       string  `json:"type"`
	ValidFrom  int     `json:"valid_from"`
	ValidUntil int     `json:"valid_until"`
	Score      float64 `json:"score"`
}

type searchResult struct {
	Results          []searchResultItem `json:"results"`
	Year             int                `json:"year"`
	Category         string             `json:"category"`
	Entities         []string           `json:"entities"`
	LexicalDegraded  bool               `json:"lexical_degraded"`
	SemanticDegraded bool               `json:"semantic_degraded"`
	TemporalApplied  bool               `json:"temporal_applied"`
}

type routeResult struct {
	Mode           string   `json:"mode"`
	MatchedPattern string   `json:"matched_pattern"`
	Year           int      `json:"year"`
	Entities       []string `json:"entities"`
	Category       string   `json:"category"`
}

type safetyResult struct {
	Unsafe         bool    `json:"unsafe"`
	Similarity     float64 `json:"similarity"`
	MatchedKeyword string  `json:"matched_keyword"`
	Degraded       bool    `json:"degraded"`
}

func TestHealthEndpoint(t *testing.T) {
	env := startServer(t)

	resp, err := http.Get(env.BaseURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, "ok", envelope.Data.Status)
}

func TestRouteClassifiesMathNotation(t *testing.T) {
	env := startServer(t)

	var res routeResult
	env.postJSON(t, "/v1/route", map[string]string{
		"query": "Giải phương trình bậc hai x2 + 2x + 1 = 0",
	}, &res)

	assert.Equal(t, "STEM", res.Mode)
	assert.Equal(t, "phương trình", res.MatchedPattern)
}

func TestSearchExcludesSupersededLaw(t *testing.T) {
	env := startServer(t)

	var res searchResult
	env.postJSON(t, "/v1/search", map[string]any{
		"query": "Luật Đất đai quy định gì về thu hồi đất?",
		"year":  2013,
	}, &res)

	assert.True(t, res.TemporalApplied)
	assert.Equal(t, 2013, res.Year)
	assert.Equal(t, "law", res.Category)
	assert.Contains(t, res.Entities, "Luật Đất")
	assert.False(t, res.LexicalDegraded)
	assert.False(t, res.SemanticDegraded)

	// law-2024 is newer but not yet in force in 2013, so only the 2013
	// statute may come back.
	require.Len(t, res.Results, 1)
	assert.Equal(t, "law-2013", res.Results[0].ID)
	assert.Equal(t, 2013, res.Results[0].ValidFrom)
	assert.Equal(t, 2023, res.Results[0].ValidUntil)
	assert.Greater(t, res.Results[0].Score, 0.0)
}

func TestAnswerRAGFlow(t *testing.T) {
	env := startServer(t)

	// Reply B only when the Mê Kông chunk made it into the prompt, so a
	// correct answer proves the retrieved context reached the model.
	env.LLM.setReply(func(prompt string) string {
		if strings.Contains(prompt, "Mê Kông") {
			return "ĐÁP ÁN: B"
		}
		return "ĐÁP ÁN: A"
	})

	var res answerResult
	env.postJSON(t, "/v1/answer", map[string]any{
		"qid":      "q1",
		"question": "Sông nào dài nhất chảy qua lãnh thổ Việt Nam?",
		"choices":  []string{"Sông Hồng", "Sông Mê Kông", "Sông Đà", "Sông Đồng Nai"},
	}, &res)

	assert.Equal(t, "q1", res.QID)
	assert.Equal(t, "B", res.Answer)
	assert.Equal(t, "RAG", res.Mode)
	assert.False(t, res.Unsafe)
	assert.Empty(t, res.Degraded)
	assert.GreaterOrEqual(t, res.DurationMs, int64(0))

	prompt := env.LLM.lastPrompt()
	assert.Contains(t, prompt, "NGỮ CẢNH:")
	assert.Contains(t, prompt, "[geo-1]")
	assert.Contains(t, prompt, "Sông nào dài nhất")
}

func TestAnswerUnsafeKeywordQuestion(t *testing.T) {
	env := startServer(t)

	var res answerResult
	env.postJSON(t, "/v1/answer", map[string]any{
		"question": "Hành vi nào sau đây bị nghiêm cấm khi tham gia giao thông?",
		"choices": []string{
			"Đi đúng phần đường quy định",
			"Vượt đèn đỏ là hành vi vi phạm pháp luật",
			"Nhường đường cho xe ưu tiên",
			"Đội mũ bảo hiểm khi đi xe máy",
		},
	}, &res)

	assert.Equal(t, "B", res.Answer)
	assert.Equal(t, "SAFETY", res.Mode)
	assert.True(t, res.Unsafe)
	assert.Zero(t, env.LLM.chatCalls(), "refusal option selection must not call the chat model")
}

func TestSafetyCheckKeyword(t *testing.T) {
	env := startServer(t)

	var res safetyResult
	env.postJSON(t, "/v1/safety/check", map[string]string{
		"query": "Hành vi nào sau đây bị nghiêm cấm khi tham gia giao thông?",
	}, &res)

	assert.True(t, res.Unsafe)
	assert.Equal(t, "bị nghiêm cấm", res.MatchedKeyword)
	assert.False(t, res.Degraded)
}

func TestSafetyCheckSeedSimilarity(t *testing.T) {
	env := startServer(t)

	seeds := safety.DefaultSeedQueries()
	require.NotEmpty(t, seeds)

	// The artifact matrix and the serving embedder share the same
	// deterministic vectors, so a verbatim seed query scores 1.0.
	var unsafeRes safetyResult
	env.postJSON(t, "/v1/safety/check", map[string]string{"query": seeds[0]}, &unsafeRes)
	assert.True(t, unsafeRes.Unsafe)
	assert.Empty(t, unsafeRes.MatchedKeyword)
	assert.InDelta(t, 1.0, unsafeRes.Similarity, 0.01)
	assert.False(t, unsafeRes.Degraded)

	var safeRes safetyResult
	env.postJSON(t, "/v1/safety/check", map[string]string{
		"query": "Thủ đô của Việt Nam là thành phố nào?",
	}, &safeRes)
	assert.False(t, safeRes.Unsafe)
	assert.Empty(t, safeRes.MatchedKeyword)
	assert.Less(t, safeRes.Similarity, 0.85)
}

func TestAnswerReadingMode(t *testing.T) {
	env := startServer(t)

	env.LLM.setReply(func(prompt string) string {
		if strings.Contains(prompt, "Cầu Long Biên") {
			return "ĐÁP ÁN: C"
		}
		return "ĐÁP ÁN: A"
	})

	var res answerResult
	env.postJSON(t, "/v1/answer", map[string]any{
		"question": "Đọc đoạn văn sau: Cầu Long Biên được khánh thành năm 1902 và bắc qua sông Hồng tại Hà Nội. Hỏi cầu Long Biên bắc qua con sông nào?",
		"choices":  []string{"Sông Đà", "Sông Mã", "Sông Hồng", "Sông Lam"},
	}, &res)

	assert.Equal(t, "C", res.Answer)
	assert.Equal(t, "READING", res.Mode)
	assert.False(t, res.Unsafe)

	prompt := env.LLM.lastPrompt()
	assert.NotContains(t, prompt, "NGỮ CẢNH:")
	assert.Contains(t, prompt, "Cầu Long Biên")
}
