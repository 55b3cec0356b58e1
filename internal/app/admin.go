package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/audiorelay/internal/health"
	"github.com/MrWong99/audiorelay/internal/observe"
)

// adminShutdownTimeout bounds the graceful stop of the admin server.
const adminShutdownTimeout = 5 * time.Second

// admin is the HTTP server carrying probes, metrics and, on the receiver,
// the stats feed.
type admin struct {
	srv *http.Server
	ln  net.Listener
}

// newAdmin binds addr and prepares the admin routes. A nil metricsHandler
// serves the default Prometheus registry. register adds component-specific
// routes to the mux.
func newAdmin(addr string, m *observe.Metrics, metricsHandler http.Handler, probes *health.Handler, register ...func(*http.ServeMux)) (*admin, error) {
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	mux := http.NewServeMux()
	probes.Register(mux)
	mux.Handle("GET /metrics", metricsHandler)
	for _, r := range register {
		r(mux)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("app: admin listen %s: %w", addr, err)
	}
	return &admin{
		srv: &http.Server{
			Handler:           observe.Middleware(m)(mux),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln: ln,
	}, nil
}

// Addr returns the bound address.
func (a *admin) Addr() net.Addr { return a.ln.Addr() }

// run serves until ctx is cancelled, then shuts the server down. Request
// contexts derive from ctx so long-lived handlers end with it.
func (a *admin) run(ctx context.Context) error {
	a.srv.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() { errCh <- a.srv.Serve(a.ln) }()
	slog.Info("admin server listening", "addr", a.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: admin server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), adminShutdownTimeout)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: admin shutdown: %w", err)
	}
	return nil
}

// close releases the listener when run was never called.
func (a *admin) close() error {
	if err := a.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
