package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hrygo/skillgate/internal/profile"
)

func TestNewConfigFromProfile(t *testing.T) {
	p := profile.Default()
	p.LLMAPIKey = "sk-test"
	p.EmbeddingAPIKey = "sk-embed"
	p.LLMRequestsPerSecond = 3

	cfg := NewConfigFromProfile(p)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 2048, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, 3.0, cfg.LLM.RequestsPerSecond)

	assert.True(t, cfg.Embedding.Enabled)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, "sk-embed", cfg.Embedding.APIKey)

	assert.NoError(t, cfg.Validate())
}

func TestNewConfigFromProfile_Azure(t *testing.T) {
	p := profile.Default()
	p.LLMProvider = "azure"
	p.LLMAPIVersion = "2024-06-01"
	p.EmbeddingProvider = "azure"

	cfg := NewConfigFromProfile(p)
	assert.Equal(t, "2024-06-01", cfg.LLM.APIVersion)
	assert.Equal(t, "2024-06-01", cfg.Embedding.APIVersion)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg: Config{
				LLM:       LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k"},
				Embedding: EmbeddingConfig{Enabled: true, Provider: "openai", APIKey: "k"},
			},
		},
		{
			name: "ollama needs no keys",
			cfg: Config{
				LLM:       LLMConfig{Provider: "ollama", Model: "llama3"},
				Embedding: EmbeddingConfig{Enabled: true, Provider: "ollama"},
			},
		},
		{
			name: "embedding disabled",
			cfg:  Config{LLM: LLMConfig{Provider: "openai", Model: "m", APIKey: "k"}},
		},
		{
			name:    "missing provider",
			cfg:     Config{LLM: LLMConfig{Model: "m"}},
			wantErr: true,
		},
		{
			name:    "missing model",
			cfg:     Config{LLM: LLMConfig{Provider: "openai", APIKey: "k"}},
			wantErr: true,
		},
		{
			name:    "missing LLM key",
			cfg:     Config{LLM: LLMConfig{Provider: "openai", Model: "m"}},
			wantErr: true,
		},
		{
			name: "missing embedding key",
			cfg: Config{
				LLM:       LLMConfig{Provider: "openai", Model: "m", APIKey: "k"},
				Embedding: EmbeddingConfig{Enabled: true, Provider: "openai"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
