// internal/store/factory.go
package store

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/spatialplot/globeviz/internal/config"
	"github.com/spatialplot/globeviz/internal/store/database"
	"github.com/spatialplot/globeviz/internal/store/memory"
)

// Dependencies carries the loggers backends need. The database backend
// logs connection handling through zerolog and query handling through
// slog; the memory backend needs neither.
type Dependencies struct {
	Logger   *slog.Logger
	DBLogger zerolog.Logger
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	switch cfg.Type {
	case "database":
		return database.New(database.Dependencies{
			Manager: database.NewManager(deps.DBLogger),
			Logger:  deps.Logger,
		}), nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
