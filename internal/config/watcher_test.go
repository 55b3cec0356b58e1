package config_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/audiorelay/internal/config"
)

const relayYAML = `
stream:
  protocol: tcp
  port: 12345
  chunk_ms: 20
statsfeed:
  interval: 1s
`

// watchFile writes content to a fresh file and watches it, pushing every
// reload onto the returned channel.
func watchFile(t *testing.T, content string, opts ...config.WatcherOption) (string, *config.Watcher, <-chan config.Reload) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audiorelay.yaml")
	rewrite(t, path, content)

	reloads := make(chan config.Reload, 4)
	opts = append([]config.WatcherOption{config.WithInterval(20 * time.Millisecond)}, opts...)
	w, err := config.Watch(t.Context(), path, func(r config.Reload) {
		select {
		case reloads <- r:
		default:
			t.Errorf("reload dropped: %+v", r.Diff)
		}
	}, opts...)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	t.Cleanup(w.Stop)
	return path, w, reloads
}

// rewrite replaces the file and moves its mtime forward so that coarse
// filesystem timestamps still register the change.
func rewrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if info, err := os.Stat(path); err == nil {
		next := info.ModTime().Add(time.Second)
		_ = os.Chtimes(path, next, next)
	}
}

func nextReload(t *testing.T, reloads <-chan config.Reload) config.Reload {
	t.Helper()
	select {
	case r := <-reloads:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no reload within 2s")
		return config.Reload{}
	}
}

func expectNoReload(t *testing.T, reloads <-chan config.Reload) {
	t.Helper()
	select {
	case r := <-reloads:
		t.Fatalf("unexpected reload: %+v", r.Diff)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatch_InitialLoad(t *testing.T) {
	t.Parallel()
	_, w, _ := watchFile(t, relayYAML)

	cfg := w.Current()
	if cfg.Stream.ChunkMs != 20 || cfg.Stream.Port != 12345 {
		t.Errorf("stream = %+v, want chunk_ms 20 port 12345", cfg.Stream)
	}
	if cfg.PacketSize() != 2+2*882 {
		t.Errorf("PacketSize = %d, want %d", cfg.PacketSize(), 2+2*882)
	}
}

func TestWatch_StatsFeedIntervalIsHotReloadable(t *testing.T) {
	t.Parallel()
	path, w, reloads := watchFile(t, relayYAML)

	updated := `
stream:
  protocol: tcp
  port: 12345
  chunk_ms: 20
statsfeed:
  interval: 250ms
`
	rewrite(t, path, updated)
	r := nextReload(t, reloads)

	if !r.Diff.StatsFeedIntervalChanged || r.Diff.NewStatsFeedInterval != 250*time.Millisecond {
		t.Errorf("diff = %+v, want statsfeed interval 250ms", r.Diff)
	}
	if len(r.Diff.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", r.Diff.RestartRequired)
	}
	if r.Old.StatsFeed.Interval != time.Second {
		t.Errorf("old interval = %v, want 1s", r.Old.StatsFeed.Interval)
	}
	if got := w.Current().StatsFeed.Interval; got != 250*time.Millisecond {
		t.Errorf("Current interval = %v, want 250ms", got)
	}
}

func TestWatch_ChunkSizeChangeNeedsRestart(t *testing.T) {
	t.Parallel()
	path, _, reloads := watchFile(t, relayYAML)

	rewrite(t, path, `
stream:
  protocol: tcp
  port: 12345
  chunk_ms: 40
statsfeed:
  interval: 1s
`)
	r := nextReload(t, reloads)

	if !slices.Equal(r.Diff.RestartRequired, []string{"stream"}) {
		t.Errorf("RestartRequired = %v, want [stream]", r.Diff.RestartRequired)
	}
	if r.New.PayloadSize() != 4*882 {
		t.Errorf("new PayloadSize = %d, want %d", r.New.PayloadSize(), 4*882)
	}
}

func TestWatch_InvalidRewriteKeepsPreviousConfig(t *testing.T) {
	t.Parallel()
	path, w, reloads := watchFile(t, relayYAML)

	for _, bad := range []string{
		"stream:\n  chunk_ms: 25\n",
		"stream:\n  protocol: sctp\n",
		"stream: [not, a, mapping]\n",
		"stream:\n  bitrate: 128\n",
	} {
		rewrite(t, path, bad)
		expectNoReload(t, reloads)
		if got := w.Current().Stream.ChunkMs; got != 20 {
			t.Fatalf("after %q chunk_ms = %d, want previous 20", bad, got)
		}
	}

	// Restoring a valid file resumes reloading.
	rewrite(t, path, "stream:\n  chunk_ms: 30\n")
	if r := nextReload(t, reloads); r.New.Stream.ChunkMs != 30 {
		t.Errorf("chunk_ms = %d, want 30", r.New.Stream.ChunkMs)
	}
}

func TestWatch_OverlayPinsFlagValues(t *testing.T) {
	t.Parallel()
	pinPort := config.WithOverlay(func(c *config.Config) { c.Stream.Port = 40000 })
	path, w, reloads := watchFile(t, relayYAML, pinPort)

	if got := w.Current().Stream.Port; got != 40000 {
		t.Errorf("initial port = %d, want 40000", got)
	}

	rewrite(t, path, "stream:\n  port: 5000\n  chunk_ms: 20\n  protocol: tcp\nstatsfeed:\n  interval: 3s\n")
	r := nextReload(t, reloads)
	if r.New.Stream.Port != 40000 {
		t.Errorf("reloaded port = %d, want 40000", r.New.Stream.Port)
	}
	if slices.Contains(r.Diff.RestartRequired, "stream") {
		t.Errorf("RestartRequired = %v, pinned port must not count as a change", r.Diff.RestartRequired)
	}
}

func TestWatch_OverlayMakingConfigInvalidFailsLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audiorelay.yaml")
	rewrite(t, path, relayYAML)

	_, err := config.Watch(t.Context(), path, nil,
		config.WithOverlay(func(c *config.Config) { c.Stream.ChunkMs = 15 }))
	if err == nil {
		t.Fatal("Watch accepted chunk_ms 15 from the overlay")
	}
}

func TestWatch_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.Watch(t.Context(), filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWatch_StopsWithContext(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audiorelay.yaml")
	rewrite(t, path, relayYAML)

	ctx, cancel := context.WithCancel(t.Context())
	reloads := make(chan config.Reload, 1)
	w, err := config.Watch(ctx, path, func(r config.Reload) { reloads <- r },
		config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	cancel()
	w.Stop()
	w.Stop()

	rewrite(t, path, "stream:\n  chunk_ms: 50\n")
	expectNoReload(t, reloads)
}
