package statsfeed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/audiorelay/internal/session"
	"github.com/MrWong99/audiorelay/internal/statsfeed"
)

type fakeSource struct {
	mu sync.Mutex
	s  session.Stats
}

func (f *fakeSource) Snapshot() session.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}

func (f *fakeSource) set(s session.Stats) {
	f.mu.Lock()
	f.s = s
	f.mu.Unlock()
}

func startFeed(t *testing.T, src statsfeed.Source, interval time.Duration) (*statsfeed.Feed, string) {
	t.Helper()
	feed := statsfeed.New(src, interval)
	mux := http.NewServeMux()
	feed.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return feed, "ws" + strings.TrimPrefix(srv.URL, "http") + statsfeed.Path
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) statsfeed.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var msg statsfeed.Message
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestFeed_PushesSnapshots(t *testing.T) {
	t.Parallel()
	src := &fakeSource{s: session.Stats{
		ID:              "abc",
		PacketsReceived: 90,
		PacketsLost:     10,
		SessionName:     "rehearsal",
		ExpectedRating:  7,
	}}
	_, url := startFeed(t, src, 20*time.Millisecond)
	conn := dial(t, url)

	first := read(t, conn)
	if first.ID != "abc" || first.SessionName != "rehearsal" {
		t.Errorf("first message = %+v", first)
	}
	if first.LossPercent != 10 {
		t.Errorf("loss_percent = %v, want 10", first.LossPercent)
	}
	if first.SentAt.IsZero() {
		t.Error("sent_at is zero")
	}

	src.set(session.Stats{ID: "abc", PacketsReceived: 200})
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if read(t, conn).PacketsReceived == 200 {
			return
		}
	}
	t.Fatal("updated snapshot never delivered")
}

func TestFeed_SetInterval(t *testing.T) {
	t.Parallel()
	feed, url := startFeed(t, &fakeSource{}, time.Hour)
	conn := dial(t, url)

	_ = read(t, conn) // immediate first push

	feed.SetInterval(0)
	if feed.Interval() != time.Hour {
		t.Errorf("non-positive interval applied: %v", feed.Interval())
	}
	feed.SetInterval(10 * time.Millisecond)
	if feed.Interval() != 10*time.Millisecond {
		t.Errorf("Interval() = %v, want 10ms", feed.Interval())
	}

	// The hour-long ticker is still pending; a client dialled now starts on
	// the new interval.
	conn2 := dial(t, url)
	_ = read(t, conn2)
	_ = read(t, conn2)
	_ = conn
}

func TestFeed_TracksClients(t *testing.T) {
	t.Parallel()
	feed, url := startFeed(t, &fakeSource{}, 10*time.Millisecond)
	conn := dial(t, url)
	_ = read(t, conn)

	if got := feed.Clients(); got != 1 {
		t.Errorf("Clients() = %d, want 1", got)
	}

	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	deadline := time.Now().Add(2 * time.Second)
	for feed.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d after close, want 0", feed.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFeed_RejectsPlainHTTP(t *testing.T) {
	t.Parallel()
	feed := statsfeed.New(&fakeSource{}, time.Second)
	rec := httptest.NewRecorder()
	feed.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, statsfeed.Path, nil))
	if rec.Code < 400 {
		t.Errorf("status = %d, want a 4xx for a non-upgrade request", rec.Code)
	}
}
