// Package app opens the configured storage and lease backends.
package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/lumen/internal/config"
	"github.com/and161185/lumen/internal/lease"
	"github.com/and161185/lumen/internal/migrate"
	"github.com/and161185/lumen/internal/repository"
	"github.com/and161185/lumen/internal/repository/memory"
	"github.com/and161185/lumen/internal/repository/postgres"
	"github.com/and161185/lumen/internal/repository/sheets"
)

// Store is an opened row store together with its lifecycle hooks.
type Store struct {
	repository.RowStore
	// DB is set for the postgres backend.
	DB *postgres.DB
	// Ping checks that the backend is reachable.
	Ping  func(ctx context.Context) error
	close func()
}

// Close releases the backend's resources.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore connects to the configured row store, running migrations for postgres when enabled.
func OpenStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (*Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		log.Warn("using in-memory store, data is lost on exit")
		return &Store{RowStore: memory.NewRowStore(), Ping: func(context.Context) error { return nil }}, nil

	case config.BackendPostgres:
		if cfg.Migrate {
			if err := migrate.Up(ctx, cfg.DSN); err != nil {
				return nil, err
			}
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return &Store{
			RowStore: postgres.NewRowStore(db),
			DB:       db,
			Ping:     db.Ping,
			close:    db.Close,
		}, nil

	case config.BackendSheets:
		opts, err := sheets.ClientOptions(cfg.CredentialsFile, cfg.CredentialsB64)
		if err != nil {
			return nil, err
		}
		rs, err := sheets.New(ctx, cfg.SpreadsheetID, opts...)
		if err != nil {
			return nil, err
		}
		ping := func(ctx context.Context) error {
			_, err := rs.QueryRows(ctx, repository.TableDialogMeta)
			return err
		}
		return &Store{RowStore: rs, Ping: ping}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// OpenLease builds the configured lease backend; it returns a nil Lease for "none".
// The postgres lease shares the postgres store's pool when there is one.
func OpenLease(ctx context.Context, cfg config.LeaseConfig, dsn string, store *Store, log *zap.Logger) (lease.Lease, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case config.LeaseNone, "":
		return nil, noop, nil

	case config.LeasePostgres:
		if store != nil && store.DB != nil {
			return lease.NewPGWithQuerier(store.DB.Pool), noop, nil
		}
		if err := migrate.Up(ctx, dsn); err != nil {
			return nil, noop, err
		}
		db, err := postgres.New(ctx, dsn)
		if err != nil {
			return nil, noop, fmt.Errorf("lease postgres: %w", err)
		}
		return lease.NewPGWithQuerier(db.Pool), db.Close, nil

	case config.LeaseRedis:
		rdb, err := lease.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, noop, err
		}
		log.Info("redis lease enabled", zap.String("addr", cfg.RedisAddr))
		return lease.NewRedis(rdb, ""), func() { closeRedis(rdb, log) }, nil
	}
	return nil, noop, fmt.Errorf("unknown lease backend %q", cfg.Backend)
}

func closeRedis(rdb *goredis.Client, log *zap.Logger) {
	if err := rdb.Close(); err != nil {
		log.Warn("redis close", zap.Error(err))
	}
}
