package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlAudioFiles = `
CREATE TABLE IF NOT EXISTS audio_files (
    id               BIGSERIAL         PRIMARY KEY,
    nama_file        TEXT              NOT NULL,
    rating           DOUBLE PRECISION  NOT NULL,
    file_path        TEXT              NOT NULL DEFAULT '',
    file_size        BIGINT            NOT NULL DEFAULT 0,
    duration_seconds INTEGER           NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ       NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audio_files_nama_file ON audio_files (nama_file);
CREATE INDEX IF NOT EXISTS idx_audio_files_rating    ON audio_files (rating);
`

// Migrate creates the audio_files table and its indexes. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlAudioFiles); err != nil {
		return fmt.Errorf("migrate audio_files: %w", err)
	}
	return nil
}
