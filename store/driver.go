package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Warehouse model.
	Query(ctx context.Context, query string, maxRows int, args ...any) (*QueryResult, error)

	// ShipmentRequest model related methods.
	CreateShipmentRequest(ctx context.Context, create *ShipmentRequest) (*ShipmentRequest, error)
	ListShipmentRequests(ctx context.Context, find *FindShipmentRequest) ([]*ShipmentRequest, error)

	// Product model related methods.
	ListProducts(ctx context.Context, find *FindProduct) ([]*Product, error)
	UpsertProductEmbedding(ctx context.Context, embedding *ProductEmbedding) (*ProductEmbedding, error)
	SearchProducts(ctx context.Context, opts *ProductSearchOptions) ([]*ProductMatch, error)

	// SemanticCache model related methods.
	ListSemanticCacheEntries(ctx context.Context) ([]*SemanticCacheEntry, error)
	ReplaceSemanticCacheEntries(ctx context.Context, entries []*SemanticCacheEntry) error

	// SkillMetrics model related methods.
	UpsertSkillMetrics(ctx context.Context, upsert *UpsertSkillMetrics) (*SkillMetrics, error)
	ListSkillMetrics(ctx context.Context, find *FindSkillMetrics) ([]*SkillMetrics, error)
	DeleteSkillMetrics(ctx context.Context, delete *DeleteSkillMetrics) error

	// ToolMetrics model related methods.
	UpsertToolMetrics(ctx context.Context, upsert *UpsertToolMetrics) (*ToolMetrics, error)
	ListToolMetrics(ctx context.Context, find *FindToolMetrics) ([]*ToolMetrics, error)
	DeleteToolMetrics(ctx context.Context, delete *DeleteToolMetrics) error
}
