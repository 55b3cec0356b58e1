package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/audiorelay/pkg/catalog"
	"github.com/MrWong99/audiorelay/pkg/catalog/postgres"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if AUDIORELAY_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("AUDIORELAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AUDIORELAY_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) (*postgres.Store, *pgxpool.Pool) {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS audio_files CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store, pool
}

func TestStore_AddAudioFile(t *testing.T) {
	store, pool := newTestStore(t)
	ctx := context.Background()

	rec := catalog.Record{Name: "rehearsal", Rating: 8.5, Path: "/tmp/r.wav", Size: 88244, DurationSeconds: 12}
	id, err := store.AddAudioFile(ctx, rec)
	if err != nil {
		t.Fatalf("AddAudioFile: %v", err)
	}
	if id <= 0 {
		t.Fatalf("id = %d, want > 0", id)
	}

	var got catalog.Record
	err = pool.QueryRow(ctx,
		`SELECT nama_file, rating, file_path, file_size, duration_seconds FROM audio_files WHERE id = $1`, id,
	).Scan(&got.Name, &got.Rating, &got.Path, &got.Size, &got.DurationSeconds)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != rec {
		t.Errorf("stored %+v, want %+v", got, rec)
	}

	id2, err := store.AddAudioFile(ctx, rec)
	if err != nil {
		t.Fatalf("second AddAudioFile: %v", err)
	}
	if id2 == id {
		t.Errorf("second id = %d, want distinct from %d", id2, id)
	}
}

func TestStore_AddAudioFile_Invalid(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.AddAudioFile(context.Background(), catalog.Record{Rating: 11})
	if !errors.Is(err, catalog.ErrPersistence) {
		t.Errorf("err = %v, want ErrPersistence", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	_, pool := newTestStore(t)
	if err := postgres.Migrate(context.Background(), pool); err != nil {
		t.Errorf("second Migrate: %v", err)
	}
}

func TestNewStore_BadDSN(t *testing.T) {
	t.Parallel()
	if _, err := postgres.NewStore(context.Background(), "://not a dsn"); err == nil {
		t.Error("expected error for malformed DSN")
	}
}
