package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/skillgate/internal/profile"
	"github.com/hrygo/skillgate/store"
	"github.com/hrygo/skillgate/store/db/postgres"
	"github.com/hrygo/skillgate/store/db/sqlite"
)

// Supported drivers:
//
// PostgreSQL: production warehouse, vector search through pgvector.
// SQLite: development, demo mode and tests; vector search runs in process.

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
