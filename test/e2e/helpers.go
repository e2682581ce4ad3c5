//go:build e2e

// Package e2e boots the full answering server in-process against index
// artifacts built into a temp directory and a stubbed OpenAI endpoint, then
// drives the HTTP surface the way a real client would.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/khaothi-ai/khaothi/internal/api/handlers"
	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/jobs"
	"github.com/khaothi-ai/khaothi/internal/llm"
	"github.com/khaothi-ai/khaothi/internal/pipeline"
	"github.com/khaothi-ai/khaothi/internal/router"
	"github.com/khaothi-ai/khaothi/internal/safety"
	"github.com/khaothi-ai/khaothi/internal/search"
	"github.com/khaothi-ai/khaothi/internal/server"
	"github.com/khaothi-ai/khaothi/internal/store/memstore"
)

const embedDim = 512

// wordVector embeds text as a hashed bag of words, unit normalized. The same
// text always maps to the same vector, so a seed query loaded from the
// safety artifact scores exactly 1.0 against itself at serve time, while
// unrelated sentences stay far below the unsafe threshold.
func wordVector(text string) []float32 {
	vec := make([]float32, embedDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%embedDim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// fakeLLM serves the two OpenAI endpoints the provider client calls.
// Embeddings come from wordVector so the whole test is deterministic; chat
// replies come from a swappable function.
type fakeLLM struct {
	server *httptest.Server

	mu      sync.Mutex
	reply   func(prompt string) string
	prompts []string
}

func newFakeLLM(t *testing.T) *fakeLLM {
	f := &fakeLLM{
		reply: func(string) string { return "ĐÁP ÁN: A" },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", f.handleEmbeddings)
	mux.HandleFunc("/v1/chat/completions", f.handleChat)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeLLM) baseURL() string {
	return f.server.URL + "/v1"
}

func (f *fakeLLM) setReply(fn func(prompt string) string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = fn
}

func (f *fakeLLM) chatCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeLLM) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input any `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var texts []string
	switch in := req.Input.(type) {
	case string:
		texts = []string{in}
	case []any:
		for _, item := range in {
			s, _ := item.(string)
			texts = append(texts, s)
		}
	}

	data := make([]map[string]any, len(texts))
	for i, text := range texts {
		data[i] = map[string]any{
			"object":    "embedding",
			"index":     i,
			"embedding": wordVector(text),
		}
	}
	writeJSON(w, map[string]any{
		"object": "list",
		"data":   data,
		"model":  "text-embedding-ada-002",
	})
}

func (f *fakeLLM) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	content := f.reply(prompt)
	f.mu.Unlock()

	writeJSON(w, map[string]any{
		"id":     "chatcmpl-e2e",
		"object": "chat.completion",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// testCorpus is small but covers every retrieval path: two geography chunks,
// two law chunks with disjoint validity windows, and one history chunk.
func testCorpus() []domain.Chunk {
	return []domain.Chunk{
		{
			ID:     "geo-1",
			Text:   "Sông Mê Kông chảy qua sáu quốc gia và là con sông dài nhất chảy qua lãnh thổ Việt Nam.",
			Source: "Địa lý 12",
			Type:   domain.ChunkTypeGeography,
		},
		{
			ID:     "geo-2",
			Text:   "Sông Hồng bắt nguồn từ Vân Nam và bồi đắp nên đồng bằng Bắc Bộ.",
			Source: "Địa lý 12",
			Type:   domain.ChunkTypeGeography,
		},
		{
			ID:         "law-2013",
			Text:       "Luật Đất đai 2013 quy định người sử dụng đất được bồi thường khi Nhà nước thu hồi đất.",
			Source:     "Luật Đất đai 2013",
			Type:       domain.ChunkTypeLaw,
			ValidFrom:  2013,
			ValidUntil: 2023,
		},
		{
			ID:        "law-2024",
			Text:      "Luật Đất đai 2024 bỏ khung giá đất và quy định bảng giá đất được cập nhật hằng năm.",
			Source:    "Luật Đất đai 2024",
			Type:      domain.ChunkTypeLaw,
			ValidFrom: 2024,
		},
		{
			ID:     "his-1",
			Text:   "Chiến dịch Điện Biên Phủ kết thúc thắng lợi vào ngày 7 tháng 5 năm 1954.",
			Source: "Lịch sử 12",
			Type:   domain.ChunkTypeHistory,
		},
	}
}

// buildArtifacts writes chunks.json, vectors.bin and safety.bin into a temp
// directory, embedding chunk texts and the default seed queries with
// wordVector. The server loads these exactly as it would production
// artifacts.
func buildArtifacts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	chunks := testCorpus()
	vectors := make([][]float32, len(chunks))
	for i := range chunks {
		chunks[i].Normalize()
		require.NoError(t, domain.ValidateChunk(&chunks[i]))
		vectors[i] = wordVector(chunks[i].Text)
	}

	require.NoError(t, memstore.WriteChunks(filepath.Join(dir, memstore.ChunksFile), chunks))
	require.NoError(t, memstore.WriteVectors(filepath.Join(dir, memstore.VectorsFile), embedDim, vectors))

	seeds := safety.DefaultSeedQueries()
	matrix := make([][]float32, len(seeds))
	for i, seed := range seeds {
		matrix[i] = wordVector(seed)
	}
	require.NoError(t, memstore.WriteVectors(filepath.Join(dir, memstore.SafetyFile), embedDim, matrix))

	return dir
}

// testEnv is one running server plus the fake endpoint behind it.
type testEnv struct {
	BaseURL string
	LLM     *fakeLLM

	client *http.Client
}

// startServer wires the serving stack the same way the serve command does,
// but over artifacts from buildArtifacts and the fake OpenAI server. The
// server is torn down through t.Cleanup.
func startServer(t *testing.T) *testEnv {
	t.Helper()

	fake := newFakeLLM(t)
	dir := buildArtifacts(t)

	st, err := memstore.Load(dir)
	require.NoError(t, err)

	_, matrix, err := memstore.ReadVectors(filepath.Join(dir, memstore.SafetyFile))
	require.NoError(t, err)

	provider, err := llm.New(llm.Options{
		Provider:       "openai",
		APIKey:         "test-key",
		BaseURL:        fake.baseURL(),
		ChatModel:      "gpt-4o-mini",
		Dimensions:     embedDim,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
	})
	require.NoError(t, err)

	guard := safety.NewGuard(provider, safety.GuardConfig{Matrix: matrix})
	selector := safety.NewSelector(provider, nil)

	queryRouter, err := router.New(router.Config{})
	require.NoError(t, err)

	engine := search.NewEngine(st, provider, search.Config{})

	auditCh := make(chan domain.AuditRecord, 64)
	worker := jobs.NewAuditWorker(auditCh, &jobs.LogSink{}, 50*time.Millisecond)
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	go worker.Start(workerCtx)

	pipe := pipeline.New(pipeline.Deps{
		Guard:    guard,
		Selector: selector,
		Router:   queryRouter,
		Engine:   engine,
		Chat:     provider,
		Audit:    auditCh,
	})

	handler := server.NewRouter(server.RouterConfig{
		QueryHandler:  handlers.NewQueryHandler(pipe, engine, queryRouter, guard),
		HealthHandler: handlers.NewHealthHandler(nil),
	})

	port := getFreePort(t)
	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: handler,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Errorf("server failed: %v", err)
		}
	}()

	env := &testEnv{
		BaseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		LLM:     fake,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	waitForServer(t, env.BaseURL+"/health")

	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		worker.Stop()
		cancelWorker()
	})

	return env
}

func getFreePort(t *testing.T) int {
	t.Helper()
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	l, err := net.ListenTCP("tcp", addr)
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func waitForServer(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server at %s did not come up", url)
}

// postJSON sends a request and decodes the data envelope into out. It fails
// the test on any non-200 response.
func (env *testEnv) postJSON(t *testing.T, path string, body any, out any) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := env.client.Post(env.BaseURL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equalf(t, http.StatusOK, resp.StatusCode, "POST %s: %s", path, envelope.Error)

	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
}
