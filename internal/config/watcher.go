package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] polls the config file.
const DefaultWatchInterval = 2 * time.Second

// Reload is one accepted change of the config file.
type Reload struct {
	Old, New *Config

	// Diff is Diff(Old, New).
	Diff ConfigDiff
}

// fileState identifies one version of the config file.
type fileState struct {
	mtime time.Time
	size  int64
	sum   [sha256.Size]byte
}

// Watcher keeps the relay's config in sync with its file while a send or
// receive run is active. Rewrites that fail to parse or validate are logged
// and ignored; the last good config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	overlay  func(*Config)
	notify   func(Reload)

	mu      sync.Mutex
	current *Config
	seen    fileState

	cancel context.CancelFunc
	done   chan struct{}
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Non-positive values keep
// [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithOverlay applies fn to every loaded config before it is validated, so
// values fixed by command-line flags survive a reload.
func WithOverlay(fn func(*Config)) WatcherOption {
	return func(w *Watcher) { w.overlay = fn }
}

// Watch loads path and polls it until ctx is done or [Watcher.Stop] is
// called. notify, when non-nil, runs on the polling goroutine for every
// accepted change.
func Watch(ctx context.Context, path string, notify func(Reload), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		notify:   notify,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, st, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.seen = cfg, st

	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling and waits for an in-flight notify to return. Safe to
// call more than once.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if r, ok := w.poll(); ok && w.notify != nil {
				w.notify(r)
			}
		}
	}
}

// poll reports a Reload when the file holds a new valid config.
func (w *Watcher) poll() (Reload, bool) {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config file unavailable, keeping previous config", "path", w.path, "err", err)
		return Reload{}, false
	}

	w.mu.Lock()
	seen := w.seen
	w.mu.Unlock()
	if info.ModTime().Equal(seen.mtime) && info.Size() == seen.size {
		return Reload{}, false
	}

	cfg, st, err := w.load()
	if err != nil {
		slog.Warn("config rewrite rejected, keeping previous config", "path", w.path, "err", err)
		w.mu.Lock()
		w.seen.mtime, w.seen.size = info.ModTime(), info.Size()
		w.mu.Unlock()
		return Reload{}, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen = st
	if st.sum == seen.sum {
		return Reload{}, false
	}
	old := w.current
	w.current = cfg
	slog.Info("config reloaded", "path", w.path)
	return Reload{Old: old, New: cfg, Diff: Diff(old, cfg)}, true
}

// load reads, decodes, overlays and validates the file.
func (w *Watcher) load() (*Config, fileState, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fileState{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fileState{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileState{}, err
	}
	if w.overlay != nil {
		w.overlay(cfg)
		if err := Validate(cfg); err != nil {
			return nil, fileState{}, err
		}
	}
	st := fileState{mtime: info.ModTime(), size: info.Size(), sum: sha256.Sum256(data)}
	return cfg, st, nil
}
