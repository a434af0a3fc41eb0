package main

import (
	"context"
	"fmt"

	"github.com/hmasp-digital/triagem/internal/config"
	"github.com/hmasp-digital/triagem/internal/storage"
	"github.com/spf13/viper"
)

// initStorage opens the database with proper path expansion and runs
// pending migrations.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/triagem/triagem.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}
