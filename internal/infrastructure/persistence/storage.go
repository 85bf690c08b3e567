// Package persistence opens the configured player store and edition counter.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wordle-hub/wordle-stats-bot/config"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/persistence/badgerstore"
	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/persistence/memory"
	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/persistence/postgres"
	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/persistence/redis"
	"github.com/wordle-hub/wordle-stats-bot/pkg/logger"
)

// Pinger is a dependency that can be health-checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Storage bundles the opened backends.
type Storage struct {
	Players  player.Repository
	Editions player.EditionCounter

	// Dedup is set when Redis is enabled.
	Dedup *redis.UpdateDeduplicator

	// Migrator is set for the postgres driver.
	Migrator *postgres.Migrator

	// Badger is set for the badger driver.
	Badger *badgerstore.Store

	// Checks maps a health check name to its backend.
	Checks map[string]Pinger

	closers []func() error
}

// Options controls Open.
type Options struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig

	// Migrate applies pending postgres migrations after connecting.
	Migrate bool

	Logger *slog.Logger
}

// Open connects the configured backends. On error everything opened so far
// is closed.
func Open(ctx context.Context, opts Options) (_ *Storage, err error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("storage"))

	s := &Storage{Checks: make(map[string]Pinger)}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// Player store
	// ─────────────────────────────────────────────────────────────────────────
	switch opts.Database.Driver {
	case config.DriverMemory, "":
		store := memory.NewStore()
		s.Players = store
		s.Editions = memory.NewEditionCounter()
		s.Checks["store"] = store
		log.Warn("using in-memory storage, data is lost on restart")

	case config.DriverBadger:
		store, err := badgerstore.Open(badgerstore.Options{Path: opts.Database.BadgerPath}, log)
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		s.closers = append(s.closers, store.Close)
		s.Badger = store
		s.Players = store
		s.Editions = store.EditionCounter()
		s.Checks["store"] = store
		log.Info("badger store opened", slog.String("path", opts.Database.BadgerPath))

	case config.DriverPostgres:
		pool := postgres.DefaultPoolOptions()
		pool.MaxConns = opts.Database.MaxConns
		pool.MinConns = opts.Database.MinConns
		pool.MaxConnLifetime = opts.Database.ConnMaxLifetime
		pool.MaxConnIdleTime = opts.Database.ConnMaxIdleTime

		conn, err := postgres.Connect(ctx, opts.Database.URL, pool)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, func() error { conn.Close(); return nil })
		s.Players = postgres.NewPlayerRepository(conn)
		s.Editions = postgres.NewEditionCounter(conn)
		s.Migrator = postgres.NewMigrator(conn)
		s.Checks["postgres"] = conn

		if opts.Migrate {
			applied, err := s.Migrator.Up(ctx)
			if err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied", slog.Int("count", applied))
		}

	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Database.Driver)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Redis: shared edition counter and update dedup
	// ─────────────────────────────────────────────────────────────────────────
	if opts.Redis.Enabled {
		rc := redis.DefaultConfig()
		rc.Host = opts.Redis.Host
		rc.Port = opts.Redis.Port
		rc.Password = opts.Redis.Password
		rc.DB = opts.Redis.DB
		rc.PoolSize = opts.Redis.PoolSize
		rc.KeyPrefix = opts.Redis.KeyPrefix
		rc.DialTimeout = opts.Redis.DialTimeout
		rc.ReadTimeout = opts.Redis.ReadTimeout
		rc.WriteTimeout = opts.Redis.WriteTimeout

		cache, err := redis.NewCache(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.closers = append(s.closers, cache.Close)
		s.Editions = redis.NewEditionCounter(cache)
		s.Dedup = redis.NewUpdateDeduplicator(cache, opts.Redis.DedupTTL)
		s.Checks["redis"] = cache
		log.Info("redis connected", slog.String("addr", rc.Addr()))
	}

	return s, nil
}

// Close releases backends in reverse order.
func (s *Storage) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
