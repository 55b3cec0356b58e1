package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func get(t *testing.T, h http.Handler, path string) (int, result) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func newMux(checkers ...Checker) *http.ServeMux {
	mux := http.NewServeMux()
	New(checkers...).Register(mux)
	return mux
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	code, body := get(t, newMux(Checker{Name: "broken", Check: func(context.Context) error {
		return errors.New("down")
	}}), "/healthz")
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("got %d %q, want 200 ok", code, body.Status)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	var ready Flag
	ready.Set(true)
	var notReady Flag

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "all pass",
			checkers: []Checker{
				PingChecker("catalog", pinger{}),
				ready.Checker("receiver"),
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"catalog": "ok", "receiver": "ok"},
		},
		{
			name: "catalog down",
			checkers: []Checker{
				PingChecker("catalog", pinger{err: errors.New("connection refused")}),
				ready.Checker("receiver"),
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"catalog": "fail: connection refused", "receiver": "ok"},
		},
		{
			name:       "flag unset",
			checkers:   []Checker{notReady.Checker("receiver")},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"receiver": "fail: not ready"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, body := get(t, newMux(tt.checkers...), "/readyz")
			if code != tt.wantCode {
				t.Errorf("status code = %d, want %d", code, tt.wantCode)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			for k, want := range tt.wantChecks {
				if got := body.Checks[k]; got != want {
					t.Errorf("checks[%q] = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestReadyz_CheckerGetsDeadline(t *testing.T) {
	t.Parallel()
	var deadline time.Time
	_, body := get(t, newMux(Checker{Name: "slow", Check: func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	}}), "/readyz")
	if body.Status != "ok" {
		t.Fatalf("status = %q", body.Status)
	}
	if deadline.IsZero() || time.Until(deadline) > checkTimeout {
		t.Errorf("deadline = %v, want within %v", deadline, checkTimeout)
	}
}

func TestFlag(t *testing.T) {
	t.Parallel()
	var f Flag
	if f.Ready() {
		t.Fatal("zero Flag should not be ready")
	}
	c := f.Checker("x")
	if err := c.Check(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("err = %v, want ErrNotReady", err)
	}
	f.Set(true)
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}
