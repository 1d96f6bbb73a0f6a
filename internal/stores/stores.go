// Package stores opens the storage backends selected by configuration.
package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"quantbrain/internal/config"
	"quantbrain/internal/storage"
	chstore "quantbrain/internal/storage/clickhouse"
	"quantbrain/internal/storage/memory"
	"quantbrain/internal/storage/migrations"
	pgstore "quantbrain/internal/storage/postgres"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendDatabase = "postgres+clickhouse"
)

// ErrIncompleteStorage is returned when only one of the two DSNs is set.
var ErrIncompleteStorage = errors.New("both postgres_dsn and clickhouse_dsn are required (or use_memory)")

// Set holds all storage implementations.
type Set struct {
	Bars    storage.BarStore
	Runs    storage.RunStore
	Equity  storage.EquityStore
	Backend string

	closers []func()
	pingers []func(context.Context) error
}

// pingTimeout bounds each backend ping.
const pingTimeout = 2 * time.Second

// Memory returns a Set of in-memory stores.
func Memory() *Set {
	return &Set{
		Bars:    memory.NewBarStore(),
		Runs:    memory.NewRunStore(),
		Equity:  memory.NewEquityStore(),
		Backend: BackendMemory,
	}
}

// Open connects the configured backends. Run records go to PostgreSQL, bars
// and equity curves to ClickHouse; both schemas are migrated on open.
// Without DSNs (or with use_memory) in-memory stores are returned.
func Open(ctx context.Context, cfg config.Storage, log zerolog.Logger) (*Set, error) {
	if cfg.Memory() {
		log.Info().Str("backend", BackendMemory).Msg("using in-memory storage")
		return Memory(), nil
	}
	if cfg.PostgresDSN == "" || cfg.ClickhouseDSN == "" {
		return nil, ErrIncompleteStorage
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	log.Info().Str("backend", BackendDatabase).Msg("storage ready")

	return &Set{
		Bars:    chstore.NewBarStore(chConn),
		Runs:    pgstore.NewRunStore(pool),
		Equity:  chstore.NewEquityStore(chConn),
		Backend: BackendDatabase,
		closers: []func(){
			func() { _ = chConn.Close() },
			pool.Close,
		},
		pingers: []func(context.Context) error{
			func(ctx context.Context) error { return pool.Healthy(ctx, pingTimeout) },
			func(ctx context.Context) error { return chConn.Healthy(ctx, pingTimeout) },
		},
	}, nil
}

// Ping checks every database backend. Memory stores are always healthy.
func (s *Set) Ping(ctx context.Context) error {
	var errs []error
	for _, p := range s.pingers {
		if err := p(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases database connections. Safe to call on a memory Set.
func (s *Set) Close() {
	for _, c := range s.closers {
		c()
	}
	s.closers = nil
}
