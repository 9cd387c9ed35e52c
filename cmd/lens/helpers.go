package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/ledgerlens/ledgerlens/internal/config"
	"github.com/ledgerlens/ledgerlens/internal/engine"
	"github.com/ledgerlens/ledgerlens/internal/oracle"
	"github.com/ledgerlens/ledgerlens/internal/storage"
)

// databasePath resolves the SQLite path from config or the default location.
func databasePath() (string, error) {
	if dbPath := viper.GetString("database.path"); dbPath != "" {
		return config.ExpandPath(dbPath), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "lens", "lens.db"), nil
}

// openStorage opens the database and applies pending migrations.
func openStorage(dbPath string) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// newEngine builds the parsing engine from config. Returns nil without error
// when no oracle API key is configured, so callers can degrade gracefully.
func newEngine() (*engine.Engine, error) {
	apiKey := viper.GetString("oracle.api_key")
	if apiKey == "" {
		return nil, nil
	}

	provider := viper.GetString("oracle.provider")
	if provider == "" {
		provider = "gemini"
	}

	client, err := oracle.NewClient(oracle.Config{
		Provider:    provider,
		APIKey:      apiKey,
		Model:       viper.GetString("oracle.model"),
		Temperature: viper.GetFloat64("oracle.temperature"),
		MaxTokens:   viper.GetInt("oracle.max_tokens"),
		RateLimit:   viper.GetInt("oracle.rate_limit"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle client: %w", err)
	}

	return engine.New(client), nil
}
