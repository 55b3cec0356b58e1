// Package app wires the relay's components into the two runnable halves:
// [Sender] captures and streams audio, [Receiver] plays it back, records it
// and reports the session.
//
// Both own the full lifecycle: the constructor opens every resource, Run
// blocks until the context is cancelled or a fatal error occurs, and
// Shutdown releases everything in order. For testing, inject doubles via
// functional options; components that are not injected are built from the
// config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MrWong99/audiorelay/internal/observe"
)

// closer is one teardown step run by Shutdown.
type closer struct {
	name string
	fn   func() error
}

// runClosers calls closers in order. It stops early when ctx expires and
// returns the context error in that case.
func runClosers(ctx context.Context, closers []closer) error {
	slog.Info("shutting down", "closers", len(closers))
	for i, c := range closers {
		select {
		case <-ctx.Done():
			slog.Warn("shutdown deadline exceeded", "remaining", len(closers)-i)
			return ctx.Err()
		default:
		}
		if err := c.fn(); err != nil {
			slog.Warn("closer error", "closer", c.name, "err", err)
		}
	}
	slog.Info("shutdown complete")
	return nil
}

// resolveMetrics picks the instruments: explicit ones first, then ones on
// the telemetry's meter provider, then the global defaults.
func resolveMetrics(m *observe.Metrics, tel *observe.Telemetry) (*observe.Metrics, error) {
	switch {
	case m != nil:
		return m, nil
	case tel != nil:
		m, err := observe.NewMetrics(tel.MeterProvider)
		if err != nil {
			return nil, fmt.Errorf("app: create metrics: %w", err)
		}
		return m, nil
	default:
		return observe.DefaultMetrics(), nil
	}
}

func metricsHandler(tel *observe.Telemetry) http.Handler {
	if tel == nil {
		return nil
	}
	return tel.MetricsHandler()
}
