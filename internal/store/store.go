// Package store opens the account repository selected by configuration.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/oxy-accounts/internal/config"
	"github.com/and161185/oxy-accounts/internal/repository"
	"github.com/and161185/oxy-accounts/internal/repository/orm"
	"github.com/and161185/oxy-accounts/internal/repository/postgres"
)

// Drivers accepted by postgres.driver.
const (
	DriverPgx  = "pgx"
	DriverGorm = "gorm"
)

// Store bundles the repository with its health check and cleanup.
type Store struct {
	Accounts repository.AccountRepository
	pinger   interface{ Ping(context.Context) error }
	close    func() error
}

// Open connects using cfg.Driver. debug enables per-query logging on gorm.
func Open(ctx context.Context, cfg config.Postgres, log *zap.Logger, debug bool) (*Store, error) {
	switch cfg.Driver {
	case DriverGorm:
		gdb, err := orm.Open(cfg.DSN, cfg.MaxConns, log, debug)
		if err != nil {
			return nil, err
		}
		repo := orm.NewAccountRepo(gdb)
		return &Store{Accounts: repo, pinger: repo, close: repo.Close}, nil
	case DriverPgx, "":
		db, err := postgres.New(ctx, cfg.DSN, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		return &Store{
			Accounts: postgres.NewAccountRepo(db),
			pinger:   db,
			close:    func() error { db.Close(); return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unknown postgres driver %q", cfg.Driver)
	}
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.pinger.Ping(ctx) }

// Close releases the connection pool.
func (s *Store) Close() error { return s.close() }
