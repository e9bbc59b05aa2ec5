// Package postgres provides a PostgreSQL implementation of the episode,
// history and exemplar stores. Schema migrations are embedded in the binary
// and applied on open.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

// Pool sizing for a single CLI or MCP process.
const (
	maxConns int32 = 8
	minConns int32 = 1
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Store is a PostgreSQL-backed store sharing one connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to databaseURL, pings the server and applies pending
// migrations.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("%w: database url is required", domain.ErrInvalidInput)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	migrations, err := embeddedMigrations()
	if err != nil {
		pool.Close()
		return nil, err
	}

	s := &Store{pool: pool}
	if _, err := s.migrate(ctx, migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// EpisodeStore returns an EpisodeStore backed by this store.
func (s *Store) EpisodeStore() driven.EpisodeStore {
	return &episodeStore{pool: s.pool}
}

// HistoryStore returns the version, feedback and event stores backed by this store.
func (s *Store) HistoryStore() *HistoryStore {
	return &HistoryStore{pool: s.pool}
}

// ExemplarIndex returns an ExemplarIndex backed by this store.
func (s *Store) ExemplarIndex() *ExemplarIndex {
	return &ExemplarIndex{pool: s.pool}
}

// withTx runs fn in a transaction, committing when fn returns nil.
func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// isUniqueViolation reports whether err is a unique constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// notFound maps pgx.ErrNoRows to domain.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// utc normalises timestamps; the zero time becomes now.
func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
