package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hydroforge/hydroforge/internal/catalog"
	"github.com/hydroforge/hydroforge/internal/config"
	"github.com/hydroforge/hydroforge/internal/db"
	"github.com/hydroforge/hydroforge/internal/progress"
	"github.com/hydroforge/hydroforge/internal/settings"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `hydroforge init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// openSettings opens the shared database and a settings store over it.
// The caller closes the returned database.
func openSettings(ctx context.Context, cfg *config.Config) (*db.DB, *settings.Store, error) {
	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	store, err := settings.NewStore(ctx, settings.NewSQLiteBackend(database), cfg.PollInterval)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, store, nil
}

// newHTTPClient returns the client used for manifest and content fetches.
func newHTTPClient(cfg *config.Config) *http.Client {
	return &http.Client{Timeout: cfg.HTTPTimeout}
}

// newCatalog builds the catalog holder for the configured sources.
func newCatalog(cfg *config.Config, reporter progress.Reporter) (*catalog.Holder, error) {
	svc, err := catalog.NewService(cfg.Sources, catalog.Options{
		Client:   newHTTPClient(cfg),
		Reporter: reporter,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring catalog: %w", err)
	}
	return catalog.NewHolder(svc, cfg.Contact), nil
}
