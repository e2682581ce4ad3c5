package llm

import (
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOllamaBaseURL is the OpenAI-compatible endpoint of a local ollama.
const DefaultOllamaBaseURL = "http://localhost:11434/v1"

// providerConfig maps a provider name to a go-openai client configuration.
// Every provider speaks the OpenAI wire protocol; they differ only in base
// URL, API flavor and authentication headers.
func providerConfig(opts Options) (openai.ClientConfig, error) {
	switch opts.Provider {
	case "openai":
		cfg := openai.DefaultConfig(opts.APIKey)
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		return cfg, nil

	case "azure":
		if opts.BaseURL == "" {
			return openai.ClientConfig{}, fmt.Errorf("azure provider requires a base URL")
		}
		return openai.DefaultAzureConfig(opts.APIKey, opts.BaseURL), nil

	case "ollama":
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaBaseURL
		}
		// Ollama ignores the bearer token but go-openai requires one.
		cfg := openai.DefaultConfig("ollama")
		cfg.BaseURL = baseURL
		return cfg, nil

	case "vnpt":
		if opts.BaseURL == "" {
			return openai.ClientConfig{}, fmt.Errorf("vnpt provider requires a base URL")
		}
		cfg := openai.DefaultConfig(opts.APIKey)
		cfg.BaseURL = opts.BaseURL
		cfg.HTTPClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{
					"Token-id":  opts.VNPTTokenID,
					"Token-key": opts.VNPTTokenKey,
				},
			},
		}
		return cfg, nil

	default:
		return openai.ClientConfig{}, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}

// headerTransport injects static headers into every request. The VNPT
// gateway authenticates with Token-id/Token-key pairs on top of the bearer
// token.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range t.headers {
		cloned.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(cloned)
}
