package session

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MrWong99/audiorelay/internal/observe"
	"github.com/MrWong99/audiorelay/pkg/catalog"
)

// ReporterConfig configures a [Reporter].
type ReporterConfig struct {
	// Catalog receives the final record. Nil disables persistence.
	Catalog catalog.Catalog

	// FilePath is the recording's location. Empty disables persistence.
	FilePath string

	// AutoRate stores the calculated rating instead of the expected one.
	AutoRate bool

	// Metrics records catalog writes. Nil disables recording.
	Metrics *observe.Metrics

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Reporter makes the end-of-session report.
type Reporter struct {
	cfg ReporterConfig
}

// NewReporter returns a reporter for cfg.
func NewReporter(cfg ReporterConfig) *Reporter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reporter{cfg: cfg}
}

// Report logs the final statistics of info and, when persistence is enabled
// and output was written, stores exactly one catalog record. A catalog
// failure is logged and not returned; ok reports whether a record was stored.
func (r *Reporter) Report(ctx context.Context, info *Info) (id int64, ok bool) {
	st := info.Snapshot()
	now := r.cfg.Now()
	dur := now.Sub(st.Started)
	log := observe.Logger(ctx)

	log.Info("session statistics",
		"duration", dur.Round(100*time.Millisecond),
		"packets_received", st.PacketsReceived,
		"packets_lost", st.PacketsLost,
		"bytes_received", st.BytesReceived,
		"loss_percent", st.LossPercent(),
		"calculated_rating", st.CalculatedRating,
	)

	switch {
	case r.cfg.Catalog == nil || r.cfg.FilePath == "":
		return 0, false
	case !st.OutputWritten:
		log.Info("nothing recorded, skipping catalog entry", "path", r.cfg.FilePath)
		return 0, false
	}

	rec := r.record(st, dur)
	id, err := r.cfg.Catalog.AddAudioFile(ctx, rec)
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.RecordCatalogWrite(ctx, err)
	}
	if err != nil {
		log.Error("failed to save session to catalog", "name", rec.Name, "err", err)
		return 0, false
	}
	log.Info("session saved to catalog", "id", id, "name", rec.Name, "rating", rec.Rating)
	return id, true
}

func (r *Reporter) record(st Stats, dur time.Duration) catalog.Record {
	name := st.SessionName
	if name == "" {
		name = filepath.Base(r.cfg.FilePath)
	}
	rating := st.ExpectedRating
	if r.cfg.AutoRate {
		rating = st.CalculatedRating
	}
	return catalog.Record{
		Name:            name,
		Rating:          rating,
		Path:            r.cfg.FilePath,
		Size:            fileSize(r.cfg.FilePath),
		DurationSeconds: int(dur / time.Second),
	}
}

// fileSize returns the size of path, or 0 when it cannot be read.
func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("stat recording", "path", path, "err", err)
		}
		return 0
	}
	return fi.Size()
}
