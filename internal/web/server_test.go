package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"viral-music-bot/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStats struct {
	stats models.Stats
	err   error
}

func (f fakeStats) AggregateStats(context.Context) (models.Stats, error) {
	return f.stats, f.err
}

type fakeBot bool

func (b fakeBot) Running() bool { return bool(b) }

func newTestServer(stats fakeStats, running bool) *Server {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := NewServer(0, stats, fakeBot(running), log)
	s.now = func() time.Time { return time.Unix(1700000000, 500*int64(time.Millisecond)) }
	return s
}

func get(t *testing.T, s *Server, path string, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	for _, running := range []bool{true, false} {
		rec, body := get(t, newTestServer(fakeStats{}, running), "/health", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		want := map[string]any{
			"status":    "healthy",
			"bot":       map[bool]string{true: "running", false: "stopped"}[running],
			"timestamp": 1700000000.5,
		}
		if diff := cmp.Diff(body, want); diff != "" {
			t.Errorf("/health (-got +want):\n%s", diff)
		}
	}
}

func TestKeepAliveAndHome(t *testing.T) {
	s := newTestServer(fakeStats{}, true)

	_, body := get(t, s, "/keepalive", nil)
	want := map[string]any{"status": "awake", "message": "Instance kept alive"}
	if diff := cmp.Diff(body, want); diff != "" {
		t.Errorf("/keepalive (-got +want):\n%s", diff)
	}

	_, body = get(t, s, "/", nil)
	if body["status"] != "online" || body["service"] != "Viral Music Bot" {
		t.Errorf("/ = %v", body)
	}
	if _, ok := body["endpoints"].(map[string]any)["/health"]; !ok {
		t.Errorf("/ endpoints missing /health: %v", body["endpoints"])
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(fakeStats{stats: models.Stats{
		Users:             3,
		ActiveGroups:      5,
		Promotions:        7,
		SharesOutstanding: 60,
		ReachEstimate:     50200,
	}}, true)

	rec, body := get(t, s, "/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := map[string]any{
		"users":              float64(3),
		"active_groups":      float64(5),
		"promotions":         float64(7),
		"shares_outstanding": float64(60),
		"reach_estimate":     float64(50200),
	}
	if diff := cmp.Diff(body, want); diff != "" {
		t.Errorf("/stats (-got +want):\n%s", diff)
	}

	rec, _ = get(t, newTestServer(fakeStats{err: errors.New("disk I/O error")}, true), "/stats", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status on failure = %d, want 500", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(fakeStats{}, true)

	rec, _ := get(t, s, "/keepalive", nil)
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("no request id assigned")
	}

	for _, name := range []string{requestIDHeader, "x-request-id", "X-Request-Id"} {
		rec, _ = get(t, s, "/keepalive", http.Header{name: {"abc-123"}})
		if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
			t.Errorf("request id sent as %s = %q, want abc-123", name, got)
		}
	}
}

func TestRunShutdown(t *testing.T) {
	s := newTestServer(fakeStats{}, true)
	s.addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
