package admin

import (
	"context"
	"fmt"

	"github.com/khaothi-ai/khaothi/internal/config"
	"github.com/khaothi-ai/khaothi/internal/database"
	"github.com/khaothi-ai/khaothi/internal/llm"
	"github.com/khaothi-ai/khaothi/internal/store"
	"github.com/khaothi-ai/khaothi/internal/store/memstore"
	"github.com/khaothi-ai/khaothi/internal/store/pgstore"
)

// newProvider builds the configured LLM client.
func newProvider(cfg *config.Config) (*llm.Client, error) {
	client, err := llm.New(llm.Options{
		Provider:       cfg.LLMProvider,
		APIKey:         cfg.LLMAPIKey,
		BaseURL:        cfg.LLMBaseURL,
		ChatModel:      cfg.ChatModel,
		EmbedModel:     cfg.EmbedModel,
		Dimensions:     cfg.EmbedDim,
		VNPTTokenID:    cfg.VNPTTokenID,
		VNPTTokenKey:   cfg.VNPTTokenKey,
		EmbedTimeout:   cfg.EmbedTimeout,
		ChatTimeout:    cfg.ChatTimeout,
		EmbedRate:      cfg.EmbedRate,
		ChatRate:       cfg.ChatRate,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	return client, nil
}

// openKnowledgeStore opens the configured backend for offline commands. The
// cleanup function releases the connection pool when one was opened.
func openKnowledgeStore(ctx context.Context, cfg *config.Config) (store.KnowledgeStore, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, nil, err
		}
		st := pgstore.NewStore(pool)
		if err := st.VerifyAlignment(ctx, cfg.EmbedDim); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return st, pool.Close, nil

	default:
		if err := fetchArtifacts(ctx, cfg); err != nil {
			return nil, nil, err
		}
		st, err := memstore.Load(cfg.ArtifactDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load index artifacts: %w", err)
		}
		return st, func() {}, nil
	}
}
