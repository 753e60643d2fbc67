package ai

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// MockLLMService is a scripted LLMService for testing.
type MockLLMService struct {
	mu        sync.Mutex
	responses []*Completion
	err       error
	calls     []MockLLMCall
}

// MockLLMCall records one Complete invocation.
type MockLLMCall struct {
	Messages []Message
	Tools    []ToolDefinition
}

// NewMockLLMService creates a mock replying with responses in order. Once the
// script runs out every call returns "done".
func NewMockLLMService(responses ...*Completion) *MockLLMService {
	return &MockLLMService{responses: responses}
}

// MockText is a completion with plain assistant text.
func MockText(content string) *Completion {
	return &Completion{Message: AssistantMessage(content), FinishReason: "stop"}
}

// MockToolCalls is a completion requesting the given tool calls.
func MockToolCalls(calls ...ToolCall) *Completion {
	msg := Message{Role: "assistant"}
	for _, c := range calls {
		if c.Type == "" {
			c.Type = "function"
		}
		msg.ToolCalls = append(msg.ToolCalls, c)
	}
	return &Completion{Message: msg, FinishReason: "tool_calls"}
}

// SetError makes every following call fail with err.
func (m *MockLLMService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the recorded invocations.
func (m *MockLLMService) Calls() []MockLLMCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockLLMCall(nil), m.calls...)
}

func (m *MockLLMService) Model() string {
	return "mock"
}

func (m *MockLLMService) Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockLLMCall{
		Messages: append([]Message(nil), messages...),
		Tools:    append([]ToolDefinition(nil), tools...),
	})
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return MockText("done"), nil
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	return next, nil
}

var wordPattern = regexp.MustCompile(`\w+`)

// MockEmbeddingService embeds text as a normalized bag of hashed words, so
// queries sharing words get high cosine similarity.
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	err        error
	calls      int
}

// NewMockEmbeddingService creates a mock with the given vector size.
func NewMockEmbeddingService(dimensions int) *MockEmbeddingService {
	if dimensions <= 0 {
		dimensions = 64
	}
	return &MockEmbeddingService{dimensions: dimensions}
}

// SetError makes every following call fail with err.
func (m *MockEmbeddingService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// CallCount returns the number of texts embedded so far.
func (m *MockEmbeddingService) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *MockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}
	m.calls += len(texts)

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.vector(text)
	}
	return out, nil
}

func (m *MockEmbeddingService) Dimensions() int {
	return m.dimensions
}

func (m *MockEmbeddingService) vector(text string) []float32 {
	v := make([]float32, m.dimensions)
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(m.dimensions)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

var (
	_ LLMService       = (*MockLLMService)(nil)
	_ EmbeddingService = (*MockEmbeddingService)(nil)
)
