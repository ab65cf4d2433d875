package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

var discard = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestReceiverExitsWhenLaunchedForTrigger(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var backups atomic.Int32
	exitCode := -1
	r := &Receiver{
		Backup:     func(context.Context) error { backups.Add(1); return nil },
		LaunchedAt: start,
		Exit:       func(code int) { exitCode = code },
		Now:        func() time.Time { return start.Add(300 * time.Millisecond) },
		Logger:     discard,
	}
	if err := r.Handle(context.Background(), NewTrigger()); err != nil {
		t.Fatal(err)
	}
	if backups.Load() != 1 || exitCode != 0 {
		t.Errorf("backups = %d, exit = %d", backups.Load(), exitCode)
	}
}

func TestReceiverStaysWhenAlreadyRunning(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	exited := false
	r := &Receiver{
		Backup:     func(context.Context) error { return nil },
		LaunchedAt: start,
		Exit:       func(int) { exited = true },
		Now:        func() time.Time { return start.Add(5 * time.Minute) },
		Logger:     discard,
	}
	_ = r.Handle(context.Background(), NewTrigger())
	if exited {
		t.Error("interactive instance exited")
	}
}

func TestReceiverExitCodeOnFailure(t *testing.T) {
	now := time.Now()
	code := -1
	r := &Receiver{
		Backup:     func(context.Context) error { return errors.New("no folder") },
		LaunchedAt: now,
		Exit:       func(c int) { code = c },
		Now:        func() time.Time { return now },
		Logger:     discard,
	}
	if err := r.Handle(context.Background(), NewTrigger()); err == nil {
		t.Error("expected backup error")
	}
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestReceiverRejectsUnknownKind(t *testing.T) {
	r := &Receiver{Backup: func(context.Context) error { t.Error("backup ran"); return nil }}
	if err := r.Handle(context.Background(), Message{Kind: "reboot"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestHTTPChannelRoundTrip(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != TriggerPath {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ch := NewHTTPChannel(srv.URL)
	if err := ch.Send(context.Background(), NewTrigger()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Kind != TriggerBackup {
		t.Errorf("received %+v", got)
	}
}

func TestHTTPChannelErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no folder selected", http.StatusConflict)
	}))
	defer srv.Close()

	err := NewHTTPChannel(srv.URL).Send(context.Background(), NewTrigger())
	if err == nil || errors.Is(err, ErrNoReceiver) {
		t.Errorf("err = %v", err)
	}
}

func TestHTTPChannelNoReceiver(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	err = NewHTTPChannel(addr).Send(context.Background(), NewTrigger())
	if !errors.Is(err, ErrNoReceiver) {
		t.Errorf("err = %v, want ErrNoReceiver", err)
	}
}

func TestNewHTTPChannelAddr(t *testing.T) {
	tests := map[string]string{
		":8080":                "http://127.0.0.1:8080",
		"localhost:9000":       "http://localhost:9000",
		"http://127.0.0.1:1/":  "http://127.0.0.1:1",
		"https://example.test": "https://example.test",
	}
	for in, want := range tests {
		if got := NewHTTPChannel(in).BaseURL; got != want {
			t.Errorf("NewHTTPChannel(%q) = %q, want %q", in, got, want)
		}
	}
}
