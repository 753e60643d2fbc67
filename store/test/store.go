package test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hrygo/skillgate/internal/profile"
	"github.com/hrygo/skillgate/store"
	"github.com/hrygo/skillgate/store/db"
)

// NewTestingStore opens a migrated and seeded store. SQLite on a temp file is
// the default; set DRIVER=postgres with POSTGRES_TEST_DSN to run against a
// pgvector-enabled PostgreSQL.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	p := getTestingProfile(t)
	driver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}
	s := store.New(driver, p)
	if p.Driver == "postgres" {
		resetPostgres(ctx, t, s)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func getTestingProfile(t *testing.T) *profile.Profile {
	p := profile.Default()
	p.Mode = "demo"
	p.Driver = getDriverFromEnv()

	switch p.Driver {
	case "postgres":
		p.DSN = GetPostgresDSN(t)
	default:
		p.Data = t.TempDir()
		p.DSN = filepath.Join(p.Data, fmt.Sprintf("skillgate_%s.db", p.Mode))
	}
	return p
}

func getDriverFromEnv() string {
	driver := os.Getenv("DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	return driver
}

// GetPostgresDSN returns the DSN for PostgreSQL testing.
func GetPostgresDSN(t *testing.T) string {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN is not set")
	}
	return dsn
}

// resetPostgres drops the tables created by earlier runs so each test starts
// from the latest schema and seed.
func resetPostgres(ctx context.Context, t *testing.T, s *store.Store) {
	tables := []string{
		"product_embedding", "products", "monthly_sales", "product_performance", "dealer_performance",
		"inventory_status", "insights", "shipment_requests", "semantic_cache", "skill_metrics", "tool_metrics",
	}
	for _, table := range tables {
		if _, err := s.GetDriver().GetDB().ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			t.Fatalf("failed to drop table %s: %v", table, err)
		}
	}
}
