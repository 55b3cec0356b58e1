// Package statsfeed pushes live receiver statistics to WebSocket clients.
//
// Each client connected to /ws/session receives one JSON [Message]
// immediately and then one per interval until it disconnects or the server
// shuts down. The interval can be changed while clients are connected.
package statsfeed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/audiorelay/internal/session"
)

// Path is the route the feed is registered under.
const Path = "/ws/session"

// writeTimeout bounds a single message write to a slow client.
const writeTimeout = 5 * time.Second

// Source yields the current session state. [*session.Info] satisfies it.
type Source interface {
	Snapshot() session.Stats
}

// Message is the JSON document sent to clients.
type Message struct {
	session.Stats
	LossPercent float64   `json:"loss_percent"`
	SentAt      time.Time `json:"sent_at"`
}

// Feed is an [http.Handler] serving the stats stream.
type Feed struct {
	src      Source
	interval atomic.Int64
	clients  atomic.Int64
	now      func() time.Time
}

// New creates a feed publishing src every interval.
func New(src Source, interval time.Duration) *Feed {
	f := &Feed{src: src, now: time.Now}
	f.interval.Store(int64(interval))
	return f
}

// SetInterval changes the push interval of every connected client from
// its next tick on. Non-positive values are ignored.
func (f *Feed) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	f.interval.Store(int64(d))
	slog.Info("stats feed interval changed", "interval", d)
}

// Interval returns the current push interval.
func (f *Feed) Interval() time.Duration { return time.Duration(f.interval.Load()) }

// Clients returns the number of connected clients.
func (f *Feed) Clients() int { return int(f.clients.Load()) }

// Register adds the feed route to mux.
func (f *Feed) Register(mux *http.ServeMux) {
	mux.Handle("GET "+Path, f)
}

// ServeHTTP upgrades the request and streams messages until the client goes
// away or the request context is cancelled.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("stats feed: accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.CloseNow()

	f.clients.Add(1)
	defer f.clients.Add(-1)

	// Clients never send; CloseRead handles control frames and cancels ctx
	// when the peer closes.
	ctx := conn.CloseRead(r.Context())

	err = f.stream(ctx, conn)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		_ = conn.Close(websocket.StatusNormalClosure, "")
	case websocket.CloseStatus(err) != -1:
	default:
		slog.Debug("stats feed: client dropped", "remote", r.RemoteAddr, "err", err)
	}
}

func (f *Feed) stream(ctx context.Context, conn *websocket.Conn) error {
	d := f.Interval()
	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		if err := f.push(ctx, conn); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if cur := f.Interval(); cur != d {
			d = cur
			ticker.Reset(d)
		}
	}
}

func (f *Feed) push(ctx context.Context, conn *websocket.Conn) error {
	s := f.src.Snapshot()
	msg := Message{Stats: s, LossPercent: s.LossPercent(), SentAt: f.now()}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
