package cache

import (
	"log/slog"
	"math"
	"time"

	"github.com/hrygo/skillgate/plugin/ai/truncate"
)

const (
	DefaultSimilarityThreshold = 0.92
	DefaultSemanticMaxSize     = 200
	DefaultSemanticTTL         = 2 * time.Hour

	// similarityWindow is the number of recent best-similarity scores kept
	// for threshold tuning.
	similarityWindow = 100
)

// SemanticCache answers queries whose embedding is close enough to a stored
// one. Entries are evicted first-in first-out. It is not safe for concurrent use.
type SemanticCache struct {
	threshold float64
	maxSize   int
	ttl       time.Duration
	now       func() time.Time

	entries []*SemanticEntry

	hits   int64
	misses int64
	scores []float64
}

// NewSemanticCache creates a semantic cache. A threshold outside (0, 1] and
// non-positive limits use defaults.
func NewSemanticCache(threshold float64, maxSize int, ttl time.Duration, opts ...Option) *SemanticCache {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	if maxSize <= 0 {
		maxSize = DefaultSemanticMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultSemanticTTL
	}
	o := buildOptions(opts)

	return &SemanticCache{
		threshold: threshold,
		maxSize:   maxSize,
		ttl:       ttl,
		now:       o.now,
	}
}

// GetSimilar returns the most similar live entry when its similarity reaches
// the threshold, together with the best similarity observed. Expired entries
// are dropped during the scan. The returned entry is a copy whose hit count
// is the stored count plus one; the store itself is not modified.
func (c *SemanticCache) GetSimilar(query string, embedding []float32) (*Entry, float64, bool) {
	if len(c.entries) == 0 || len(embedding) == 0 {
		c.misses++
		return nil, 0, false
	}

	now := c.now()
	var best *SemanticEntry
	bestSimilarity := 0.0

	live := c.entries[:0]
	for _, e := range c.entries {
		if now.Sub(e.CreatedAt) > c.ttl {
			continue
		}
		live = append(live, e)
		if sim := CosineSimilarity(embedding, e.Embedding); sim > bestSimilarity {
			best, bestSimilarity = e, sim
		}
	}
	for i := len(live); i < len(c.entries); i++ {
		c.entries[i] = nil
	}
	c.entries = live

	if bestSimilarity > 0 {
		c.recordScore(bestSimilarity)
	}

	if best != nil && bestSimilarity >= c.threshold {
		c.hits++
		slog.Debug("semantic cache hit",
			"query", truncate.Runes(query, 50),
			"similarity", bestSimilarity)
		hit := best.Entry
		hit.HitCount++
		return &hit, bestSimilarity, true
	}

	c.misses++
	if bestSimilarity > 0 {
		slog.Debug("semantic cache miss",
			"query", truncate.Runes(query, 50),
			"best_similarity", bestSimilarity,
			"threshold", c.threshold)
	}
	return nil, bestSimilarity, false
}

// Set appends an entry, evicting the oldest while at capacity.
func (c *SemanticCache) Set(query, response string, embedding []float32, skillName string) {
	for len(c.entries) >= c.maxSize {
		c.entries[0] = nil
		c.entries = c.entries[1:]
	}
	c.entries = append(c.entries, &SemanticEntry{
		Entry: Entry{
			Query:     query,
			Response:  response,
			SkillName: skillName,
			CreatedAt: c.now(),
		},
		Embedding: append([]float32(nil), embedding...),
	})
}

// Clear removes all entries.
func (c *SemanticCache) Clear() {
	c.entries = nil
	slog.Debug("semantic cache cleared")
}

// Len returns the number of stored entries.
func (c *SemanticCache) Len() int {
	return len(c.entries)
}

// Entries returns copies of the stored entries, oldest first.
func (c *SemanticCache) Entries() []SemanticEntry {
	out := make([]SemanticEntry, 0, len(c.entries))
	for _, e := range c.entries {
		cp := *e
		cp.Embedding = append([]float32(nil), e.Embedding...)
		out = append(out, cp)
	}
	return out
}

// Load appends previously snapshotted entries, skipping expired ones and
// entries without an embedding. Capacity is enforced as for Set.
func (c *SemanticCache) Load(entries []SemanticEntry) int {
	now := c.now()
	loaded := 0
	for i := range entries {
		e := entries[i]
		if len(e.Embedding) == 0 || now.Sub(e.CreatedAt) > c.ttl {
			continue
		}
		for len(c.entries) >= c.maxSize {
			c.entries[0] = nil
			c.entries = c.entries[1:]
		}
		e.Embedding = append([]float32(nil), e.Embedding...)
		c.entries = append(c.entries, &e)
		loaded++
	}
	return loaded
}

// Stats reports size, counters and the rolling similarity average.
func (c *SemanticCache) Stats() SemanticStats {
	avg := 0.0
	if len(c.scores) > 0 {
		sum := 0.0
		for _, s := range c.scores {
			sum += s
		}
		avg = sum / float64(len(c.scores))
	}
	return SemanticStats{
		Stats: Stats{
			Size:    len(c.entries),
			MaxSize: c.maxSize,
			Hits:    c.hits,
			Misses:  c.misses,
			HitRate: hitRate(c.hits, c.misses),
		},
		AvgSimilarity: avg,
		Threshold:     c.threshold,
	}
}

func (c *SemanticCache) recordScore(score float64) {
	c.scores = append(c.scores, score)
	if len(c.scores) > similarityWindow {
		c.scores = append(c.scores[:0], c.scores[len(c.scores)-similarityWindow:]...)
	}
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// lengths differ or either vector has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
