package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/dockhand/dockhand/internal/api"
	"github.com/dockhand/dockhand/internal/config"
)

var ErrNotFound = errors.New("deployment not found")

// Store persists the deployment run history.
type Store interface {
	CreateDeployment(ctx context.Context, d *api.Deployment) error
	FinishDeployment(ctx context.Context, id, status, commit, errText string, finishedAt time.Time) error
	GetDeployment(ctx context.Context, id string) (*api.Deployment, error)
	ListDeployments(ctx context.Context) ([]*api.Deployment, error)
	Close()
}

// Open selects the configured backend: SQLite by default, PostgreSQL when
// store.backend is "postgres" and a DSN is set.
func Open(ctx context.Context) (Store, error) {
	backend := viper.GetString(config.KeyStoreBackend)
	switch backend {
	case "postgres":
		dsn := viper.GetString(config.KeyStoreDSN)
		if dsn == "" {
			return nil, fmt.Errorf("store.dsn is required for the postgres backend")
		}
		return NewPostgresStore(ctx, dsn)
	case "", "sqlite":
		return NewSQLiteStore(viper.GetString(config.KeyStorePath))
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
