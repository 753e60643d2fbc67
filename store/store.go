package store

import (
	"context"

	"github.com/hrygo/skillgate/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Query runs a read-only warehouse query and returns at most maxRows rows.
func (s *Store) Query(ctx context.Context, query string, maxRows int, args ...any) (*QueryResult, error) {
	return s.driver.Query(ctx, query, maxRows, args...)
}

func (s *Store) CreateShipmentRequest(ctx context.Context, create *ShipmentRequest) (*ShipmentRequest, error) {
	return s.driver.CreateShipmentRequest(ctx, create)
}

func (s *Store) ListShipmentRequests(ctx context.Context, find *FindShipmentRequest) ([]*ShipmentRequest, error) {
	return s.driver.ListShipmentRequests(ctx, find)
}

func (s *Store) ListProducts(ctx context.Context, find *FindProduct) ([]*Product, error) {
	return s.driver.ListProducts(ctx, find)
}

func (s *Store) UpsertProductEmbedding(ctx context.Context, embedding *ProductEmbedding) (*ProductEmbedding, error) {
	return s.driver.UpsertProductEmbedding(ctx, embedding)
}

func (s *Store) SearchProducts(ctx context.Context, opts *ProductSearchOptions) ([]*ProductMatch, error) {
	return s.driver.SearchProducts(ctx, opts)
}

func (s *Store) ListSemanticCacheEntries(ctx context.Context) ([]*SemanticCacheEntry, error) {
	return s.driver.ListSemanticCacheEntries(ctx)
}

func (s *Store) ReplaceSemanticCacheEntries(ctx context.Context, entries []*SemanticCacheEntry) error {
	return s.driver.ReplaceSemanticCacheEntries(ctx, entries)
}

func (s *Store) UpsertSkillMetrics(ctx context.Context, upsert *UpsertSkillMetrics) (*SkillMetrics, error) {
	return s.driver.UpsertSkillMetrics(ctx, upsert)
}

func (s *Store) ListSkillMetrics(ctx context.Context, find *FindSkillMetrics) ([]*SkillMetrics, error) {
	return s.driver.ListSkillMetrics(ctx, find)
}

func (s *Store) DeleteSkillMetrics(ctx context.Context, delete *DeleteSkillMetrics) error {
	return s.driver.DeleteSkillMetrics(ctx, delete)
}

func (s *Store) UpsertToolMetrics(ctx context.Context, upsert *UpsertToolMetrics) (*ToolMetrics, error) {
	return s.driver.UpsertToolMetrics(ctx, upsert)
}

func (s *Store) ListToolMetrics(ctx context.Context, find *FindToolMetrics) ([]*ToolMetrics, error) {
	return s.driver.ListToolMetrics(ctx, find)
}

func (s *Store) DeleteToolMetrics(ctx context.Context, delete *DeleteToolMetrics) error {
	return s.driver.DeleteToolMetrics(ctx, delete)
}
