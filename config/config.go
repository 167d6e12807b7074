// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every runtime knob. All fields come from environment
// variables; unset optional fields disable the feature they control.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8765"`

	// Authoritative source (mem0-compatible API).
	SourceAPIKey string `env:"SOURCE_API_KEY"`
	SourceAPIURL string `env:"SOURCE_API_URL"`

	// When set, the vector index lives in a peer instance instead of
	// being embedded.
	VectorIndexURL string `env:"VECTOR_INDEX_URL"`

	SyncIntervalSeconds int      `env:"SYNC_INTERVAL_SECONDS" envDefault:"60"`
	SyncUsers           []string `env:"SYNC_USERS" envSeparator:","`

	// Classifier service (remote tagger). Disabled by default; the
	// heuristic tagger always backs it up.
	UseClassifierService bool   `env:"USE_CLASSIFIER_SERVICE" envDefault:"false"`
	ClassifierServiceURL string `env:"CLASSIFIER_SERVICE_URL" envDefault:"http://localhost:8000"`

	// LLM tagger, used when no classifier service is configured.
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	// Embedding backends, in order of preference: OpenAI-compatible
	// API, local ONNX model, deterministic mock.
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	EmbeddingBaseURL string `env:"EMBEDDING_BASE_URL"`
	EmbeddingModel   string `env:"EMBEDDING_MODEL"`
	ONNXModelPath    string `env:"ONNX_MODEL_PATH"`
	ONNXTokenizer    string `env:"ONNX_TOKENIZER_PATH"`

	ScoreThreshold         float64 `env:"SCORE_THRESHOLD" envDefault:"0"`
	ProfileCacheTTLSeconds int     `env:"PROFILE_CACHE_TTL_SECONDS" envDefault:"300"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// SyncInterval returns the sync period as a duration.
func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

// ProfileCacheTTL returns the stable-trait cache lifetime.
func (c Config) ProfileCacheTTL() time.Duration {
	return time.Duration(c.ProfileCacheTTLSeconds) * time.Second
}
