package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/skillgate/plugin/ai/cache"
	"github.com/hrygo/skillgate/store"
)

// LoadSemanticCache restores persisted semantic entries into the cache and
// returns how many were kept. Expired entries are dropped by the cache.
func (a *Agent) LoadSemanticCache(ctx context.Context, s *store.Store) (int, error) {
	if !a.cache.SemanticEnabled() {
		return 0, nil
	}
	rows, err := s.ListSemanticCacheEntries(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list semantic cache entries")
	}

	entries := make([]cache.SemanticEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, cache.SemanticEntry{
			Entry: cache.Entry{
				Query:     row.Query,
				Response:  row.Response,
				SkillName: row.SkillName,
				CreatedAt: time.Unix(row.CreatedTs, 0),
				HitCount:  int(row.HitCount),
			},
			Embedding: row.Embedding,
		})
	}
	n := a.cache.Restore(entries)
	slog.Info("semantic cache restored", "stored", len(rows), "kept", n)
	return n, nil
}

// SaveSemanticCache replaces the persisted semantic entries with the live
// ones and returns how many were written.
func (a *Agent) SaveSemanticCache(ctx context.Context, s *store.Store) (int, error) {
	if !a.cache.SemanticEnabled() {
		return 0, nil
	}
	entries := a.cache.Snapshot()
	rows := make([]*store.SemanticCacheEntry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, &store.SemanticCacheEntry{
			Query:     e.Query,
			Response:  e.Response,
			SkillName: e.SkillName,
			Embedding: e.Embedding,
			HitCount:  int32(e.HitCount),
			CreatedTs: e.CreatedAt.Unix(),
		})
	}
	if err := s.ReplaceSemanticCacheEntries(ctx, rows); err != nil {
		return 0, errors.Wrap(err, "failed to save semantic cache entries")
	}
	slog.Info("semantic cache saved", "count", len(rows))
	return len(rows), nil
}
