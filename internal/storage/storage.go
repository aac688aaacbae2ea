// Package storage persists the post table. All backends share one schema and
// never delete rows.
package storage

import (
	"context"
	"fmt"

	"github.com/pauljones0/fly4deals/internal/config"
	"github.com/pauljones0/fly4deals/internal/models"
)

// Store is implemented by every backend.
type Store interface {
	Load(ctx context.Context) ([]models.PostRecord, error)
	Save(ctx context.Context, records []models.PostRecord) error
	Close() error
}

// Open returns the backend selected by cfg.StateBackend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StateBackend {
	case config.BackendCSV:
		return NewCSVStore(cfg.StatePath, cfg.Location), nil
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.StatePath, cfg.Location)
	case config.BackendFirestore:
		return NewFirestoreStore(ctx, cfg.ProjectID, cfg.Location)
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}
