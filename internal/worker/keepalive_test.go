package worker

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestPing(t *testing.T) {
	status := int32(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(atomic.LoadInt32(&status)))
	}))
	defer srv.Close()

	p := NewPinger(srv.URL+"/health", time.Minute, quietLogger())
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() = %v", err)
	}

	atomic.StoreInt32(&status, http.StatusServiceUnavailable)
	if err := p.Ping(context.Background()); err == nil {
		t.Error("Ping() succeeded on 503")
	}
}

func TestPingerRun(t *testing.T) {
	tests := map[string]struct {
		status   int
		interval time.Duration
		retry    time.Duration
	}{
		"healthy uses interval": {http.StatusOK, 10 * time.Millisecond, time.Hour},
		"failing uses retry":    {http.StatusInternalServerError, time.Hour, 10 * time.Millisecond},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			p := NewPinger(srv.URL, tc.interval, quietLogger())
			p.retry = tc.retry
			p.delay = 0

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				p.Run(ctx)
				close(done)
			}()

			deadline := time.After(5 * time.Second)
			for hits.Load() < 3 {
				select {
				case <-deadline:
					t.Fatalf("only %d pings before deadline", hits.Load())
				case <-time.After(5 * time.Millisecond):
				}
			}

			cancel()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("Run did not return after cancel")
			}
		})
	}
}

func TestPingerWaitsBeforeFirstPing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	p := NewPinger(srv.URL, time.Hour, quietLogger())
	if p.delay != time.Hour {
		t.Fatalf("initial delay = %v, want the interval", p.delay)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if got := hits.Load(); got != 0 {
		t.Errorf("%d pings before the first interval, want 0", got)
	}
}
