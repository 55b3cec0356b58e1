// Package postgres implements [catalog.Catalog] on PostgreSQL.
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//	id, err := store.AddAudioFile(ctx, rec)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/audiorelay/pkg/catalog"
)

var _ catalog.Catalog = (*Store)(nil)

// Store is a PostgreSQL-backed catalog. Safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, verifies the connection, and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres catalog: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres catalog: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres catalog: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres catalog: %w", err)
	}

	return &Store{pool: pool}, nil
}

const insertAudioFile = `
INSERT INTO audio_files (nama_file, rating, file_path, file_size, duration_seconds)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`

// AddAudioFile implements [catalog.Catalog].
func (s *Store) AddAudioFile(ctx context.Context, r catalog.Record) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, fmt.Errorf("%w: invalid record: %w", catalog.ErrPersistence, err)
	}
	var id int64
	err := s.pool.QueryRow(ctx, insertAudioFile,
		r.Name, r.Rating, r.Path, r.Size, r.DurationSeconds,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: insert audio file: %w", catalog.ErrPersistence, err)
	}
	return id, nil
}

// Ping checks that the database is reachable. Used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}
