// Package cmd provides shared initialization for the command-line
// binaries: persistence, event bus and registry construction from
// configuration values.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flowmatic/flowmatic/pkg/persistence"
	"github.com/flowmatic/flowmatic/pkg/persistence/file"
	"github.com/flowmatic/flowmatic/pkg/persistence/postgresql"
)

// NewPersistence selects the storage adapter by URL scheme:
// postgres://... gets the SQL adapter, anything else the file adapter.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize postgresql persistence: %w", err))
		}

		return store
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parseProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
