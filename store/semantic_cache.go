package store

// SemanticCacheEntry is a persisted semantic cache entry.
type SemanticCacheEntry struct {
	Query     string
	Response  string
	SkillName string
	Embedding []float32
	HitCount  int32
	CreatedTs int64
}
