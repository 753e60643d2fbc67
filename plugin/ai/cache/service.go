package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ServiceConfig configures the cache service.
type ServiceConfig struct {
	QueryMaxSize        int           // Exact cache capacity (default: 100)
	QueryTTL            time.Duration // Exact cache TTL (default: 1 hour)
	SemanticEnabled     bool          // Enable the embedding-similarity level
	SimilarityThreshold float64       // Semantic hit threshold (default: 0.92)
	SemanticMaxSize     int           // Semantic cache capacity (default: 200)
	SemanticTTL         time.Duration // Semantic cache TTL (default: 2 hours)
	CleanupInterval     time.Duration // Interval for expired entry cleanup (default: 1 minute)
}

// DefaultServiceConfig returns default cache service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		QueryMaxSize:        DefaultQueryMaxSize,
		QueryTTL:            DefaultQueryTTL,
		SemanticEnabled:     true,
		SimilarityThreshold: DefaultSimilarityThreshold,
		SemanticMaxSize:     DefaultSemanticMaxSize,
		SemanticTTL:         DefaultSemanticTTL,
		CleanupInterval:     time.Minute,
	}
}

// Service guards both cache levels with one mutex for shared use and runs a
// background sweep of expired exact entries.
type Service struct {
	mu       sync.Mutex
	exact    *QueryCache
	semantic *SemanticCache

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cleanupInterval time.Duration
}

// NewService creates a new cache service.
func NewService(cfg ServiceConfig, opts ...Option) *Service {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		exact:           NewQueryCache(cfg.QueryMaxSize, cfg.QueryTTL, opts...),
		ctx:             ctx,
		cancel:          cancel,
		cleanupInterval: cfg.CleanupInterval,
	}
	if cfg.SemanticEnabled {
		s.semantic = NewSemanticCache(cfg.SimilarityThreshold, cfg.SemanticMaxSize, cfg.SemanticTTL, opts...)
	}

	// Start background cleanup
	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

// Close stops the cache service.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// SemanticEnabled reports whether the similarity level is active.
func (s *Service) SemanticEnabled() bool {
	return s.semantic != nil
}

// Get probes the exact level, then the semantic level.
func (s *Service) Get(_ context.Context, query string, embedding []float32) Lookup {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.exact.Get(query); ok {
		return Lookup{Entry: e, Source: SourceExact, Similarity: 1}
	}
	if s.semantic == nil || len(embedding) == 0 {
		return Lookup{}
	}
	e, sim, ok := s.semantic.GetSimilar(query, embedding)
	if !ok {
		return Lookup{Similarity: sim}
	}
	return Lookup{Entry: e, Source: SourceSemantic, Similarity: sim}
}

// Exact probes only the exact level.
func (s *Service) Exact(_ context.Context, query string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exact.Get(query)
}

// Semantic probes only the semantic level.
func (s *Service) Semantic(_ context.Context, query string, embedding []float32) (*Entry, float64, bool) {
	if s.semantic == nil {
		return nil, 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.semantic.GetSimilar(query, embedding)
}

// Set populates the exact level and, given an embedding, the semantic level.
func (s *Service) Set(_ context.Context, query, response, skillName string, embedding []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exact.Set(query, response, skillName)
	if s.semantic != nil && len(embedding) > 0 {
		s.semantic.Set(query, response, embedding, skillName)
	}
}

// Invalidate removes a query from the exact level.
func (s *Service) Invalidate(_ context.Context, query string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exact.Invalidate(query)
}

// Clear empties both levels.
func (s *Service) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exact.Clear()
	if s.semantic != nil {
		s.semantic.Clear()
	}
}

// Stats reports both levels.
func (s *Service) Stats(_ context.Context) ServiceStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := ServiceStats{Exact: s.exact.Stats()}
	if s.semantic != nil {
		out.Semantic = s.semantic.Stats()
	}
	return out
}

// Snapshot returns the semantic entries for persistence.
func (s *Service) Snapshot() []SemanticEntry {
	if s.semantic == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.semantic.Entries()
}

// Restore loads persisted semantic entries and returns how many were kept.
func (s *Service) Restore(entries []SemanticEntry) int {
	if s.semantic == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.semantic.Load(entries)
}

// cleanupLoop periodically removes expired entries.
func (s *Service) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			n := s.exact.CleanupExpired()
			s.mu.Unlock()
			if n > 0 {
				slog.Debug("expired cache entries removed", "count", n)
			}
		}
	}
}

// Ensure Service implements CacheService
var _ CacheService = (*Service)(nil)
