package postgres

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/hrygo/skillgate/store"
)

func (d *DB) ListSemanticCacheEntries(ctx context.Context) ([]*store.SemanticCacheEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT query, response, skill_name, embedding, hit_count, created_ts
		FROM semantic_cache
		ORDER BY id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list semantic cache entries")
	}
	defer rows.Close()

	list := []*store.SemanticCacheEntry{}
	for rows.Next() {
		var entry store.SemanticCacheEntry
		var embedding string
		if err := rows.Scan(&entry.Query, &entry.Response, &entry.SkillName, &embedding, &entry.HitCount, &entry.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan semantic cache entry")
		}
		if err := json.Unmarshal([]byte(embedding), &entry.Embedding); err != nil {
			return nil, errors.Wrap(err, "failed to decode semantic cache embedding")
		}
		list = append(list, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// ReplaceSemanticCacheEntries swaps the persisted snapshot for entries in one transaction.
func (d *DB) ReplaceSemanticCacheEntries(ctx context.Context, entries []*store.SemanticCacheEntry) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM semantic_cache"); err != nil {
		return errors.Wrap(err, "failed to clear semantic cache")
	}
	stmt := "INSERT INTO semantic_cache (query, response, skill_name, embedding, hit_count, created_ts) VALUES (" + placeholders(6) + ")"
	for _, entry := range entries {
		embedding, err := json.Marshal(entry.Embedding)
		if err != nil {
			return errors.Wrap(err, "failed to encode semantic cache embedding")
		}
		if _, err := tx.ExecContext(ctx, stmt, entry.Query, entry.Response, entry.SkillName, string(embedding), entry.HitCount, entry.CreatedTs); err != nil {
			return errors.Wrap(err, "failed to insert semantic cache entry")
		}
	}
	return tx.Commit()
}
