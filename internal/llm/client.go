// Package llm provides the embedding and chat collaborators behind the
// pipeline. A concrete provider is selected once at startup; callers only
// ever see the two interfaces.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	// DefaultEmbeddingModel is used when no embedding model is configured
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = 1536
)

var (
	// ErrEmptyText is returned when text to embed is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrEmptyPrompt is returned when a completion prompt is empty
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoChoices is returned when the chat API responds without choices
	ErrNoChoices = errors.New("no completion choices returned")
)

// EmbeddingClient converts text into fixed-length vectors. Dimensionality is
// agreed at startup and identical for every call within a process lifetime.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// ChatClient produces a completion for a prompt.
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options configures a provider-backed client. Provider is one of
// "openai", "azure", "ollama" or "vnpt".
type Options struct {
	Provider   string
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string
	Dimensions int

	// VNPT gateway credentials, sent as Token-id / Token-key headers.
	VNPTTokenID  string
	VNPTTokenKey string

	EmbedTimeout   time.Duration
	ChatTimeout    time.Duration
	EmbedRate      float64
	ChatRate       float64
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Client implements EmbeddingClient and ChatClient over an OpenAI-compatible
// API, with per-call timeouts, rate limiting and bounded retries.
type Client struct {
	api          *openai.Client
	chatModel    string
	embedModel   openai.EmbeddingModel
	dimensions   int
	embedTimeout time.Duration
	chatTimeout  time.Duration
	embedLimiter *rate.Limiter
	chatLimiter  *rate.Limiter
	maxRetries   uint
	retryDelay   time.Duration
}

// New builds the client for the configured provider.
func New(opts Options) (*Client, error) {
	clientCfg, err := providerConfig(opts)
	if err != nil {
		return nil, err
	}

	embedModel := openai.EmbeddingModel(opts.EmbedModel)
	if embedModel == "" {
		embedModel = DefaultEmbeddingModel
	}
	dimensions := opts.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := opts.RetryBaseDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	return &Client{
		api:          openai.NewClientWithConfig(clientCfg),
		chatModel:    opts.ChatModel,
		embedModel:   embedModel,
		dimensions:   dimensions,
		embedTimeout: opts.EmbedTimeout,
		chatTimeout:  opts.ChatTimeout,
		embedLimiter: newLimiter(opts.EmbedRate),
		chatLimiter:  newLimiter(opts.ChatRate),
		maxRetries:   uint(maxRetries),
		retryDelay:   retryDelay,
	}, nil
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Dimensions returns the embedding dimensionality agreed at startup.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Embed generates an embedding for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for a batch of texts in one API call,
// preserving input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, ErrEmptyText
		}
	}

	ctx, cancel := withTimeout(ctx, c.embedTimeout)
	defer cancel()

	if err := c.embedLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp openai.EmbeddingResponse
	err := c.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: c.embedModel,
		})
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		if len(item.Embedding) != c.dimensions {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(item.Embedding))
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// Complete sends a single-turn prompt and returns the completion text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	ctx, cancel := withTimeout(ctx, c.chatTimeout)
	defer cancel()

	if err := c.chatLimiter.Wait(ctx); err != nil {
		return "", err
	}

	var resp openai.ChatCompletionResponse
	err := c.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: 0,
		})
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) withRetry(ctx context.Context, call func() error) error {
	return retry.Do(call,
		retry.Context(ctx),
		retry.Attempts(c.maxRetries),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
