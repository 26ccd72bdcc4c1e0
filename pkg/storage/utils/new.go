// Package storageutils provides factory functions for storage drivers.
package storageutils

import (
	"context"
	"fmt"

	"github.com/loomworks/engram/pkg/storage"
	"github.com/loomworks/engram/pkg/storage/postgres"
	"github.com/loomworks/engram/pkg/storage/sqlite"
)

// NewStorageDriver creates a storage driver from a driver name and DSN.
// Supported drivers are "sqlite" (DSN is a file path) and "postgres".
func NewStorageDriver(ctx context.Context, driver, dsn string) (storage.Driver, error) {
	switch driver {
	case "sqlite", "sqlite3", "":
		return sqlite.NewDriver(dsn)
	case "postgres", "postgresql":
		return postgres.NewDriver(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}
