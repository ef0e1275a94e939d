package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a Repo implementation.
type Options struct {
	Driver     string
	SQLitePath string
	Postgres   PostgresConfig
}

// Open returns the Repo for opts.Driver with its schema applied.
func Open(ctx context.Context, opts Options, log *zap.Logger) (Repo, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		repo, err := OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite ready", zap.String("path", opts.SQLitePath))
		return repo, nil
	case DriverPostgres:
		return OpenPostgres(ctx, opts.Postgres, log)
	default:
		return nil, fmt.Errorf("unknown db driver %q", opts.Driver)
	}
}
