// Package dataset loads the user directory from its backing store.
package dataset

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lllypuk/dwidmapper/internal/domain/user"
)

// Source yields the directory records in dataset order.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Load reads all records. It is called once at startup.
	Load(ctx context.Context) ([]user.Record, error)
}

// LoadDirectory loads records from src and builds the directory.
// Any failure, including an empty dataset, is returned wrapped with the source name.
func LoadDirectory(ctx context.Context, src Source, logger *slog.Logger) (*user.Directory, error) {
	if logger == nil {
		logger = slog.Default()
	}

	records, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users from %s: %w", src.Name(), err)
	}

	dir, err := user.NewDirectory(records)
	if err != nil {
		return nil, fmt.Errorf("build directory from %s: %w", src.Name(), err)
	}

	logger.InfoContext(ctx, "user directory loaded",
		slog.String("source", src.Name()),
		slog.Int("users", dir.Len()),
	)

	return dir, nil
}
