package ai

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// RateLimiter paces outbound model requests.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows rps requests per second with the given burst.
// A non-positive burst is treated as 1.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Allow reports whether a request may be sent now.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Wait blocks until a request may be sent.
// Returns error if the context is cancelled first.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limit wait")
	}
	return nil
}

type rateLimitedLLM struct {
	LLMService
	limiter *RateLimiter
}

// WithLLMRateLimit wraps svc so every completion waits for the limiter.
func WithLLMRateLimit(svc LLMService, limiter *RateLimiter) LLMService {
	return &rateLimitedLLM{LLMService: svc, limiter: limiter}
}

func (s *rateLimitedLLM) Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Completion, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.LLMService.Complete(ctx, messages, tools)
}

type rateLimitedEmbedding struct {
	EmbeddingService
	limiter *RateLimiter
}

// WithEmbeddingRateLimit wraps svc so every request waits for the limiter.
func WithEmbeddingRateLimit(svc EmbeddingService, limiter *RateLimiter) EmbeddingService {
	return &rateLimitedEmbedding{EmbeddingService: svc, limiter: limiter}
}

func (s *rateLimitedEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.EmbeddingService.Embed(ctx, text)
}

func (s *rateLimitedEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.EmbeddingService.EmbedBatch(ctx, texts)
}
