package cache

import "fmt"

// Stats represents cache statistics.
type Stats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func (s Stats) String() string {
	return fmt.Sprintf("size=%d/%d hits=%d misses=%d hit_rate=%.1f%%",
		s.Size, s.MaxSize, s.Hits, s.Misses, s.HitRate*100)
}

// SemanticStats extends Stats with similarity tuning data.
type SemanticStats struct {
	Stats
	AvgSimilarity float64 `json:"avg_similarity"`
	Threshold     float64 `json:"threshold"`
}

func (s SemanticStats) String() string {
	return fmt.Sprintf("%s avg_similarity=%.3f threshold=%.2f", s.Stats, s.AvgSimilarity, s.Threshold)
}

// ServiceStats reports both cache levels.
type ServiceStats struct {
	Exact    Stats         `json:"exact"`
	Semantic SemanticStats `json:"semantic"`
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
