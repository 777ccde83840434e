package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/config"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store/postgres"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store/sqlite"
)

// openStore picks the backend from the DSN scheme and ensures its schema.
func openStore(ctx context.Context, cfg *config.ProjectConfig) (store.Store, error) {
	dsn := cfg.Database.DSN

	var db store.Store
	var err error
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		db, err = sqlite.New(ctx, dsn)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err = postgres.New(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database dsn scheme: %s", dsn)
	}
	if err != nil {
		return nil, err
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close(ctx)
		return nil, err
	}
	return db, nil
}
