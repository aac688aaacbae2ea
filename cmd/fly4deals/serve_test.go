package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pauljones0/fly4deals/internal/processor"
)

type fakeProcessor struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (f *fakeProcessor) Run(ctx context.Context) (processor.RunReport, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
	}
	return processor.RunReport{RunID: "test"}, f.err
}

func TestHealth(t *testing.T) {
	srv := newServer(context.Background(), &fakeProcessor{})
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"status\":\"ok\"}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestProcessPosts(t *testing.T) {
	fp := &fakeProcessor{}
	srv := newServer(context.Background(), fp)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process-posts", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	deadline := time.Now().Add(2 * time.Second)
	for fp.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if fp.calls.Load() != 1 {
		t.Errorf("Run called %d times, want 1", fp.calls.Load())
	}
}

func TestProcessPosts_MethodNotAllowed(t *testing.T) {
	srv := newServer(context.Background(), &fakeProcessor{})
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process-posts", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestRunOnce_SkipsOverlap(t *testing.T) {
	fp := &fakeProcessor{release: make(chan struct{})}
	srv := newServer(context.Background(), fp)

	done := make(chan bool)
	go func() { done <- srv.runOnce("first") }()

	deadline := time.Now().Add(2 * time.Second)
	for fp.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if srv.runOnce("second") {
		t.Error("Overlapping run should be skipped")
	}
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process-posts", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("trigger during run: status = %d, want 409", rec.Code)
	}

	close(fp.release)
	if !<-done {
		t.Error("First run should have started")
	}
	if fp.calls.Load() != 1 {
		t.Errorf("Run called %d times, want 1", fp.calls.Load())
	}
}

func TestRunOnce_ErrorIsLogged(t *testing.T) {
	fp := &fakeProcessor{err: errors.New("listing unreachable")}
	srv := newServer(context.Background(), fp)
	if !srv.runOnce("test") {
		t.Error("runOnce should report the run as started")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"WARN", "WARN"},
		{"", "INFO"},
		{"loud", "INFO"},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in).String(); got != tt.want {
			t.Errorf("parseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
