// Package cache provides the exact-match and semantic response caches that
// short-circuit repeated analytics questions.
package cache

import (
	"context"
	"time"
)

// Source identifies which cache level answered a lookup.
type Source string

const (
	SourceNone     Source = ""
	SourceExact    Source = "exact"
	SourceSemantic Source = "semantic"
)

// Entry is a cached final answer.
type Entry struct {
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	SkillName string    `json:"skill_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	HitCount  int       `json:"hit_count"`
}

// SemanticEntry is an Entry with the embedding of its query.
type SemanticEntry struct {
	Entry
	Embedding []float32 `json:"embedding"`
}

// Lookup is the result of a two-level cache probe.
type Lookup struct {
	Entry      *Entry
	Source     Source
	Similarity float64
}

// Hit reports whether any level answered.
func (l Lookup) Hit() bool {
	return l.Entry != nil
}

// CacheService is the response cache consumed by the agent loop.
type CacheService interface {
	// Get probes the exact cache, then the semantic cache when embedding is
	// non-empty.
	Get(ctx context.Context, query string, embedding []float32) Lookup

	// Exact probes only the exact cache.
	Exact(ctx context.Context, query string) (*Entry, bool)

	// Set stores the answer in the exact cache, and in the semantic cache
	// when embedding is non-empty.
	Set(ctx context.Context, query, response, skillName string, embedding []float32)

	// Clear empties both levels.
	Clear(ctx context.Context)

	// Stats reports both levels.
	Stats(ctx context.Context) ServiceStats
}

// Option configures a cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
