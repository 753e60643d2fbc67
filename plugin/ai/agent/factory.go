package agent

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/skillgate/internal/profile"
	"github.com/hrygo/skillgate/plugin/ai"
	"github.com/hrygo/skillgate/plugin/ai/agent/tools"
	"github.com/hrygo/skillgate/plugin/ai/cache"
	"github.com/hrygo/skillgate/plugin/ai/history"
	"github.com/hrygo/skillgate/plugin/ai/metrics"
	"github.com/hrygo/skillgate/plugin/ai/router"
	"github.com/hrygo/skillgate/store"
)

// NewRouter builds the skill router with the profile's fallback skill.
func NewRouter(p *profile.Profile) (*router.Router, error) {
	r := router.NewDefault(router.WithFallbackSkill(p.DefaultSkill))
	if _, ok := r.Get(r.FallbackSkill()); !ok {
		return nil, errors.Errorf("default skill %q is not registered", p.DefaultSkill)
	}
	return r, nil
}

// NewFromProfile assembles an agent over s from the profile. A nil llm is
// built from the LLM settings. Embedding failures disable the semantic cache
// and vector product search instead of failing startup.
func NewFromProfile(ctx context.Context, p *profile.Profile, s *store.Store, llm ai.LLMService) (*Agent, error) {
	aiConfig := ai.NewConfigFromProfile(p)
	if llm == nil {
		if err := aiConfig.Validate(); err != nil {
			return nil, errors.Wrap(err, "invalid AI configuration")
		}
		svc, err := ai.NewLLMService(&aiConfig.LLM)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create LLM service")
		}
		llm = svc
	}

	var embedder ai.EmbeddingService
	if aiConfig.Embedding.Enabled {
		svc, err := ai.NewEmbeddingService(&aiConfig.Embedding)
		if err != nil {
			slog.Warn("embedding disabled", "provider", aiConfig.Embedding.Provider, "error", err)
		} else {
			embedder = svc
		}
	}

	var clock tools.Clock
	if p.Mode == "demo" {
		c, err := tools.DataClock(ctx, s)
		if err != nil {
			slog.Warn("demo clock unavailable, using wall clock", "error", err)
		} else {
			clock = c
		}
	}

	r, err := NewRouter(p)
	if err != nil {
		return nil, err
	}
	registry := tools.NewDefaultRegistry(s, tools.Options{Embedder: embedder, Clock: clock})

	cacheService := cache.NewService(cache.ServiceConfig{
		QueryMaxSize:        p.QueryCacheSize,
		QueryTTL:            p.QueryCacheTTL,
		SemanticEnabled:     embedder != nil,
		SimilarityThreshold: p.SemanticThreshold,
		SemanticMaxSize:     p.SemanticCacheSize,
		SemanticTTL:         p.SemanticCacheTTL,
	})
	metricsService := metrics.NewService(s, metrics.DefaultPersisterConfig())

	opts := []Option{
		WithCache(cacheService),
		WithMetrics(metricsService),
		WithExecutor(tools.NewResilientToolExecutor(metricsService)),
		WithHistory(history.NewManager(history.Config{
			MaxTurns:             p.HistoryMaxTurns,
			SummarizeAfter:       p.HistorySummarizeAfter,
			MaxToolResultTokens:  p.HistoryMaxToolResultTokens,
			PreserveSystemPrompt: true,
		})),
	}
	if embedder != nil {
		opts = append(opts, WithEmbedder(embedder))
	}

	a, err := New(Config{
		MaxToolCalls:       p.MaxToolCalls,
		MaxHistoryMessages: p.HistoryMaxMessages,
		MaxResultChars:     p.MaxResultChars,
	}, llm, r, registry, opts...)
	if err != nil {
		cacheService.Close()
		metricsService.Close()
		return nil, err
	}
	a.closers = append(a.closers, cacheService.Close, metricsService.Close)

	slog.Info("agent ready",
		"model", llm.Model(),
		"skills", len(r.Skills()),
		"tools", len(registry.Names()),
		"semantic_cache", embedder != nil,
		"fallback_skill", r.FallbackSkill())
	return a, nil
}
