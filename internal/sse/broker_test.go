package sse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/stickies/internal/notestore"
)

func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ch := b.Subscribe()
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("ClientCount = %d, want 1", n)
	}
	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("ClientCount after unsubscribe = %d", n)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
}

func TestNoteEvents(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	id := uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	b.PublishNoteEvent(notestore.ChangeCreated, id)
	b.PublishNoteEvent(notestore.ChangeReplaced, uuid.Nil)
	b.PublishNoteEvent(notestore.ChangeKind("bogus"), id)

	msgs := drain(ch)
	if len(msgs) != 2 {
		t.Fatalf("got %d events, want 2: %q", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "event: note.created") || !strings.Contains(msgs[0], `"id":"1b4e28ba`) {
		t.Errorf("first = %q", msgs[0])
	}
	if !strings.Contains(msgs[1], "event: notes.replaced") || !strings.Contains(msgs[1], "data: {}") {
		t.Errorf("second = %q", msgs[1])
	}
}

func TestEventIDsIncrease(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent(notestore.ChangeUpdated, uuid.New())
	b.PublishNoteEvent(notestore.ChangeDeleted, uuid.New())

	msgs := drain(ch)
	if len(msgs) != 2 {
		t.Fatalf("got %d events", len(msgs))
	}
	if !strings.HasPrefix(msgs[0], "id: 1\n") || !strings.HasPrefix(msgs[1], "id: 2\n") {
		t.Errorf("ids = %q, %q", msgs[0], msgs[1])
	}
}

func TestBackupsDeduplicated(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	same := []string{"backup_2024-01-01_00-00-00.stickies"}
	b.PublishBackups(same, nil)
	b.PublishBackups(same, nil)
	b.PublishBackups([]string{}, nil)
	b.PublishBackups(nil, errors.New("no folder selected"))

	msgs := drain(ch)
	if len(msgs) != 3 {
		t.Fatalf("backups events = %d, want 3: %q", len(msgs), msgs)
	}
	if !strings.Contains(msgs[2], `"error":"no folder selected"`) {
		t.Errorf("error payload = %q", msgs[2])
	}
}

func TestRetainedReplayedOnSubscribe(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	b.PublishScheduler(map[string]any{"enabled": true, "interval": 3600})
	b.PublishBackups([]string{"backup_2024-01-01_00-00-00.stickies"}, nil)
	b.PublishNoteEvent(notestore.ChangeCreated, uuid.New())
	time.Sleep(50 * time.Millisecond)

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	msgs := drain(ch)
	if len(msgs) != 2 {
		t.Fatalf("replayed %d events, want 2: %q", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "event: scheduler.updated") || !strings.Contains(msgs[0], `"interval":3600`) {
		t.Errorf("first replay = %q", msgs[0])
	}
	if !strings.Contains(msgs[1], "event: backups.updated") {
		t.Errorf("second replay = %q", msgs[1])
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < 70; i++ {
		b.PublishNoteEvent(notestore.ChangeUpdated, uuid.New())
	}
	if n := b.ClientCount(); n != 1 {
		t.Errorf("ClientCount = %d", n)
	}
}

// flushRecorder is an httptest.ResponseRecorder safe to read while the
// handler writes.
type flushRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Write(p)
}

func (f *flushRecorder) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Body.String()
}

func TestServeHTTP(t *testing.T) {
	old := heartbeat
	heartbeat = 20 * time.Millisecond
	defer func() { heartbeat = old }()

	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatal("handler did not subscribe")
	}
	b.PublishNoteEvent(notestore.ChangeUpdated, uuid.New())
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.body()
	if !strings.Contains(body, "event: note.updated") {
		t.Errorf("missing event in %q", body)
	}
	if !strings.Contains(body, ": ping") {
		t.Errorf("missing heartbeat in %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Error("client not removed after disconnect")
	}
}

func TestCloseStopsEverything(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel still open")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for close")
	}
	if b.ClientCount() != 0 {
		t.Error("ClientCount after Close")
	}
	b.PublishScheduler(nil)
	b.PublishNoteEvent(notestore.ChangeUpdated, uuid.New())
	b.Close()
	if _, ok := <-b.Subscribe(); ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
}
