// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowpipe/pkg/persistence"
	"github.com/dukex/flowpipe/pkg/persistence/file"
	"github.com/dukex/flowpipe/pkg/persistence/postgresql"
	"github.com/dukex/flowpipe/pkg/persistence/redis"
	"github.com/dukex/flowpipe/pkg/persistence/sqlite"
	"github.com/dukex/flowpipe/pkg/registry"
)

// ErrUnsupportedProvider is returned for database URLs no persistence understands.
var ErrUnsupportedProvider = errors.New("unsupported persistence provider")

// ParsePersistenceProvider returns the provider named by the scheme of databaseURL.
// URLs without a scheme are file paths.
func ParsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgresql"
	default:
		return scheme
	}
}

// NewPersistence opens the checkpoint store selected by databaseURL.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider := ParsePersistenceProvider(databaseURL)

	logger.InfoContext(ctx, "Opening persistence", "provider", provider)

	switch provider {
	case "file":
		return file.NewPersistence(databaseURL), nil
	case "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "sqlite":
		return sqlite.NewPersistence(ctx, logger, databaseURL)
	case "redis", "rediss":
		return redis.NewPersistence(ctx, logger, databaseURL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
}

// NewRegistry returns a registry holding the built-in pipes and aggregations.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaults()

	return reg
}
