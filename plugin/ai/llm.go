package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/skillgate/plugin/ai/history"
)

// Message is one chat transcript entry.
type Message = history.Message

// ToolCall is a tool invocation requested by the model.
type ToolCall = history.ToolCall

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Usage reports token consumption of one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the model's reply to one request.
type Completion struct {
	Message      Message
	FinishReason string
	Usage        Usage
}

// LLMService is the chat completion service interface.
type LLMService interface {
	// Complete sends the transcript and the tools the model may call.
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Completion, error)

	// Model returns the model or deployment name.
	Model() string
}

type llmService struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// NewLLMService creates a new LLMService.
func NewLLMService(cfg *LLMConfig) (LLMService, error) {
	clientConfig, err := clientConfigFor(cfg.Provider, cfg.APIKey, cfg.BaseURL, cfg.APIVersion)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		return nil, errors.New("LLM model is required")
	}

	svc := &llmService{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}
	if cfg.RequestsPerSecond > 0 {
		return WithLLMRateLimit(svc, NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst)), nil
	}
	return svc, nil
}

// clientConfigFor builds the go-openai client configuration. Every provider
// except azure speaks the OpenAI wire protocol at its own base URL.
func clientConfigFor(provider, apiKey, baseURL, apiVersion string) (openai.ClientConfig, error) {
	switch provider {
	case "openai", "deepseek", "siliconflow":
		c := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			c.BaseURL = baseURL
		}
		return c, nil

	case "azure":
		if baseURL == "" {
			return openai.ClientConfig{}, errors.New("azure endpoint is required")
		}
		c := openai.DefaultAzureConfig(apiKey, baseURL)
		if apiVersion != "" {
			c.APIVersion = apiVersion
		}
		return c, nil

	case "ollama":
		c := openai.DefaultConfig("ollama")
		c.BaseURL = baseURL + "/v1"
		return c, nil

	default:
		return openai.ClientConfig{}, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func (s *llmService) Model() string {
	return s.model
}

func (s *llmService) Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Completion, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
		req.ToolChoice = "auto"
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty response")
	}

	choice := resp.Choices[0]
	slog.Debug("chat completion",
		"model", s.model,
		"tools", len(tools),
		"tool_calls", len(choice.Message.ToolCalls),
		"finish_reason", choice.FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds())

	return &Completion{
		Message:      fromOpenAIMessage(choice.Message),
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out[i] = msg
	}
	return out
}

func toOpenAITools(tools []ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) Message {
	msg := Message{Role: history.RoleAssistant, Content: m.Content}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, history.ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: history.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return msg
}

// SystemPrompt creates a system message.
func SystemPrompt(content string) Message {
	return history.System(content)
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return history.User(content)
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return history.Assistant(content)
}
