package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/khaothi-ai/khaothi/internal/domain"
)

type Config struct {
	Port         string `envconfig:"PORT" default:"8108"`
	Debug        bool   `envconfig:"DEBUG" default:"false"`
	MaxBodyBytes int64  `envconfig:"MAX_BODY_BYTES" default:"1048576"`

	// Knowledge store backend: "memory" serves from local artifacts,
	// "postgres" from a pgvector-enabled database.
	StoreBackend string `envconfig:"STORE_BACKEND" default:"memory"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`

	// Artifact files for the memory backend (chunks.json, vectors.bin,
	// safety.bin). When ArtifactS3Prefix is set and S3 is configured,
	// missing files are fetched into ArtifactDir at startup.
	ArtifactDir      string `envconfig:"ARTIFACT_DIR" default:"artifacts"`
	ArtifactS3Prefix string `envconfig:"ARTIFACT_S3_PREFIX"`

	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey    string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket       string `envconfig:"S3_BUCKET" default:"khaothi-artifacts"`
	S3Region       string `envconfig:"S3_REGION" default:"us-east-1"`
	S3UsePathStyle bool   `envconfig:"S3_USE_PATH_STYLE" default:"true"`

	// LLM provider, selected once at startup: openai, azure, ollama or vnpt.
	LLMProvider  string `envconfig:"LLM_PROVIDER" default:"openai"`
	LLMAPIKey    string `envconfig:"LLM_API_KEY"`
	LLMBaseURL   string `envconfig:"LLM_BASE_URL"`
	ChatModel    string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	EmbedModel   string `envconfig:"EMBED_MODEL" default:"text-embedding-ada-002"`
	EmbedDim     int    `envconfig:"EMBED_DIM" default:"1536"`
	VNPTTokenID  string `envconfig:"VNPT_TOKEN_ID"`
	VNPTTokenKey string `envconfig:"VNPT_TOKEN_KEY"`

	// Provider call budgets. Rates are requests per second against the
	// provider quota; retries use exponential backoff from RetryBaseDelay.
	EmbedTimeout   time.Duration `envconfig:"EMBED_TIMEOUT" default:"10s"`
	ChatTimeout    time.Duration `envconfig:"CHAT_TIMEOUT" default:"30s"`
	QueryTimeout   time.Duration `envconfig:"QUERY_TIMEOUT" default:"60s"`
	EmbedRate      float64       `envconfig:"EMBED_RATE" default:"8"`
	ChatRate       float64       `envconfig:"CHAT_RATE" default:"5"`
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"RETRY_BASE_DELAY" default:"1s"`

	// Retrieval tuning.
	SearchTopK     int     `envconfig:"SEARCH_TOP_K" default:"5"`
	SearchFanOut   int     `envconfig:"SEARCH_FAN_OUT" default:"20"`
	SearchRRFK     int     `envconfig:"SEARCH_RRF_K" default:"60"`
	LexicalWeight  float64 `envconfig:"SEARCH_LEXICAL_WEIGHT" default:"1.0"`
	SemanticWeight float64 `envconfig:"SEARCH_SEMANTIC_WEIGHT" default:"1.0"`
	MinScore       float64 `envconfig:"SEARCH_MIN_SCORE" default:"0.3"`

	// Safety firewall.
	SafetyThreshold float64 `envconfig:"SAFETY_THRESHOLD" default:"0.85"`

	// Optional YAML rules file overriding the built-in keyword and
	// pattern lists.
	RulesPath string `envconfig:"RULES_PATH"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Audit trail flushing.
	AuditInterval time.Duration `envconfig:"AUDIT_INTERVAL" default:"5s"`
	AuditBuffer   int           `envconfig:"AUDIT_BUFFER" default:"256"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("KHAOTHI", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

// Validate checks settings that would silently corrupt results if wrong.
// Violations are configuration errors and abort startup.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "memory":
	case "postgres":
		if !c.HasDatabase() {
			return domain.NewDomainError(domain.ErrCodeConfig, "postgres backend requires KHAOTHI_DATABASE_URL")
		}
	default:
		return domain.NewDomainError(domain.ErrCodeConfig, fmt.Sprintf("unknown store backend %q", c.StoreBackend))
	}

	switch c.LLMProvider {
	case "openai", "azure":
		if c.LLMAPIKey == "" {
			return domain.NewDomainError(domain.ErrCodeConfig, fmt.Sprintf("%s provider requires KHAOTHI_LLM_API_KEY", c.LLMProvider))
		}
	case "ollama":
	case "vnpt":
		if c.VNPTTokenID == "" || c.VNPTTokenKey == "" {
			return domain.NewDomainError(domain.ErrCodeConfig, "vnpt provider requires KHAOTHI_VNPT_TOKEN_ID and KHAOTHI_VNPT_TOKEN_KEY")
		}
	default:
		return domain.NewDomainError(domain.ErrCodeConfig, fmt.Sprintf("unknown llm provider %q", c.LLMProvider))
	}

	if c.SafetyThreshold < 0 || c.SafetyThreshold > 1 {
		return domain.NewDomainError(domain.ErrCodeConfig, "safety threshold must be within [0, 1]")
	}
	if c.SearchTopK <= 0 || c.SearchFanOut <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfig, "search top-k and fan-out must be positive")
	}
	if c.SearchFanOut < c.SearchTopK {
		return domain.NewDomainError(domain.ErrCodeConfig, "search fan-out must be at least top-k")
	}
	if c.LexicalWeight < 0 || c.SemanticWeight < 0 {
		return domain.NewDomainError(domain.ErrCodeConfig, "fusion weights must be non-negative")
	}
	if c.EmbedDim <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfig, "embedding dimensionality must be positive")
	}

	return nil
}
