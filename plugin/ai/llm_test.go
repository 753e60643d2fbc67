package ai

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/skillgate/plugin/ai/history"
)

// TestNewLLMService tests service creation.
func TestNewLLMService(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *LLMConfig
		expectError bool
	}{
		{
			name:        "OpenAI config",
			cfg:         &LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "test-key"},
			expectError: false,
		},
		{
			name:        "DeepSeek config",
			cfg:         &LLMConfig{Provider: "deepseek", Model: "deepseek-chat", APIKey: "test-key", BaseURL: "https://api.deepseek.com"},
			expectError: false,
		},
		{
			name:        "Azure config",
			cfg:         &LLMConfig{Provider: "azure", Model: "gpt-4o", APIKey: "test-key", BaseURL: "https://example.openai.azure.com", APIVersion: "2024-06-01"},
			expectError: false,
		},
		{
			name:        "Azure without endpoint",
			cfg:         &LLMConfig{Provider: "azure", Model: "gpt-4o", APIKey: "test-key"},
			expectError: true,
		},
		{
			name:        "Ollama config",
			cfg:         &LLMConfig{Provider: "ollama", Model: "llama3", BaseURL: "http://localhost:11434"},
			expectError: false,
		},
		{
			name:        "Rate limited",
			cfg:         &LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "test-key", RequestsPerSecond: 2},
			expectError: false,
		},
		{
			name:        "Missing model",
			cfg:         &LLMConfig{Provider: "openai", APIKey: "test-key"},
			expectError: true,
		},
		{
			name:        "Unsupported provider",
			cfg:         &LLMConfig{Provider: "unsupported", Model: "x"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewLLMService(tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Model, svc.Model())
		})
	}
}

func TestToOpenAIMessages(t *testing.T) {
	messages := []Message{
		SystemPrompt("You are a helpful analyst"),
		UserMessage("Top dealers?"),
		{
			Role: history.RoleAssistant,
			ToolCalls: []ToolCall{{
				ID:       "call_1",
				Type:     "function",
				Function: history.FunctionCall{Name: "query_dealer_data", Arguments: `{"query_type":"top_dealers"}`},
			}},
		},
		history.ToolResult("call_1", `{"results":[]}`),
	}

	out := toOpenAIMessages(messages)
	require.Len(t, out, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, out[0].Role)
	assert.Equal(t, "Top dealers?", out[1].Content)
	require.Len(t, out[2].ToolCalls, 1)
	assert.Equal(t, openai.ToolTypeFunction, out[2].ToolCalls[0].Type)
	assert.Equal(t, "query_dealer_data", out[2].ToolCalls[0].Function.Name)
	assert.Equal(t, "call_1", out[3].ToolCallID)
}

func TestToOpenAITools(t *testing.T) {
	params := json.RawMessage(`{"type":"object","properties":{}}`)
	out := toOpenAITools([]ToolDefinition{{Name: "get_daily_briefing", Description: "Daily briefing", Parameters: params}})

	require.Len(t, out, 1)
	assert.Equal(t, openai.ToolTypeFunction, out[0].Type)
	assert.Equal(t, "get_daily_briefing", out[0].Function.Name)
	assert.Equal(t, params, out[0].Function.Parameters)
}

func TestFromOpenAIMessage(t *testing.T) {
	msg := fromOpenAIMessage(openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:       "call_9",
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: "analyze_trends", Arguments: "{}"},
		}},
	})

	assert.Equal(t, history.RoleAssistant, msg.Role)
	require.True(t, msg.HasToolCalls())
	assert.Equal(t, "call_9", msg.ToolCalls[0].ID)
	assert.Equal(t, "function", msg.ToolCalls[0].Type)
}

// TestMessageHelpers tests helper functions.
func TestMessageHelpers(t *testing.T) {
	assert.Equal(t, "system", SystemPrompt("System prompt").Role)
	assert.Equal(t, "user", UserMessage("User message").Role)
	assert.Equal(t, "assistant", AssistantMessage("Assistant message").Role)
}

func TestMockLLMService(t *testing.T) {
	mock := NewMockLLMService(
		MockToolCalls(ToolCall{ID: "c1", Function: history.FunctionCall{Name: "query_sales_data"}}),
		MockText("Revenue was up 4%."),
	)
	ctx := context.Background()

	first, err := mock.Complete(ctx, []Message{UserMessage("revenue?")}, nil)
	require.NoError(t, err)
	assert.True(t, first.Message.HasToolCalls())
	assert.Equal(t, "function", first.Message.ToolCalls[0].Type)

	second, err := mock.Complete(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Revenue was up 4%.", second.Message.Content)

	third, err := mock.Complete(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", third.Message.Content)

	assert.Len(t, mock.Calls(), 3)
	assert.Equal(t, "revenue?", mock.Calls()[0].Messages[0].Content)
}
