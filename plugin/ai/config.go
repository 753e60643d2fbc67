package ai

import (
	"errors"
	"time"

	"github.com/hrygo/skillgate/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Embedding EmbeddingConfig
	LLM       LLMConfig
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Enabled           bool
	Provider          string // openai, azure, siliconflow, ollama
	Model             string // text-embedding-3-small
	Dimensions        int    // 1536
	APIKey            string
	BaseURL           string
	APIVersion        string
	RequestsPerSecond float64
	Burst             int
}

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider          string // openai, azure, deepseek, ollama
	Model             string // gpt-4o-mini
	APIKey            string
	BaseURL           string
	APIVersion        string
	MaxTokens         int     // default: 2048
	Temperature       float32 // default: 0.3
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables client-side pacing
	Burst             int
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{}

	cfg.LLM = LLMConfig{
		Provider:          p.LLMProvider,
		Model:             p.LLMModel,
		APIKey:            p.LLMAPIKey,
		BaseURL:           p.LLMBaseURL,
		APIVersion:        p.LLMAPIVersion,
		MaxTokens:         p.LLMMaxTokens,
		Temperature:       float32(p.LLMTemperature),
		Timeout:           p.LLMTimeout,
		RequestsPerSecond: p.LLMRequestsPerSecond,
		Burst:             1,
	}
	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = 2048
	}

	cfg.Embedding = EmbeddingConfig{
		Enabled:           p.EmbeddingEnabled,
		Provider:          p.EmbeddingProvider,
		Model:             p.EmbeddingModel,
		Dimensions:        p.EmbeddingDimensions,
		APIKey:            p.EmbeddingAPIKey,
		BaseURL:           p.EmbeddingBaseURL,
		RequestsPerSecond: p.LLMRequestsPerSecond,
		Burst:             1,
	}
	if p.EmbeddingProvider == "azure" {
		cfg.Embedding.APIVersion = p.LLMAPIVersion
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return errors.New("LLM provider is required")
	}
	if c.LLM.Model == "" {
		return errors.New("LLM model is required")
	}
	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}

	if !c.Embedding.Enabled {
		return nil
	}
	if c.Embedding.Provider == "" {
		return errors.New("embedding provider is required")
	}
	if c.Embedding.Provider != "ollama" && c.Embedding.APIKey == "" {
		return errors.New("embedding API key is required")
	}
	return nil
}
