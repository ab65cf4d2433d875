// Package sse streams note, backup and scheduler changes to connected
// clients as Server-Sent Events.
package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/stickies/internal/notestore"
)

// Event types.
const (
	TypeNoteCreated      = "note.created"
	TypeNoteUpdated      = "note.updated"
	TypeNoteDeleted      = "note.deleted"
	TypeNotesReplaced    = "notes.replaced"
	TypeBackupsUpdated   = "backups.updated"
	TypeSchedulerUpdated = "scheduler.updated"
)

// retained event types are replayed to every new subscriber so a client
// learns the current backup list and scheduler state on connect.
var retained = map[string]bool{
	TypeBackupsUpdated:   true,
	TypeSchedulerUpdated: true,
}

var noteTypes = map[notestore.ChangeKind]string{
	notestore.ChangeCreated:  TypeNoteCreated,
	notestore.ChangeUpdated:  TypeNoteUpdated,
	notestore.ChangeDeleted:  TypeNoteDeleted,
	notestore.ChangeReplaced: TypeNotesReplaced,
}

// heartbeat is how often an idle stream receives a comment line.
var heartbeat = 15 * time.Second

// Event is one broadcast message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NoteRef is the payload of note.* events.
type NoteRef struct {
	ID string `json:"id,omitempty"`
}

// Broker fans events out to subscribers.
//
// A single goroutine owns the subscriber set, the event sequence and the
// retained payloads; public methods talk to it over channels.
type Broker struct {
	dedup time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countCh       chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. A retained event whose payload equals the
// previous one is dropped when it arrives within dedup of it; the catalog
// watcher re-lists often and most lists are unchanged.
func NewBroker(dedup time.Duration) *Broker {
	if dedup <= 0 {
		dedup = 2 * time.Second
	}
	b := &Broker{
		dedup:         dedup,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countCh:       make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.loop()
	return b
}

type lastPayload struct {
	data []byte
	msg  []byte
	at   time.Time
}

func (b *Broker) loop() {
	defer close(b.stopped)

	var (
		clients = make(map[chan []byte]struct{})
		last    = make(map[string]lastPayload)
		seq     uint64
	)

	broadcast := func(ev Event) {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return
		}
		now := time.Now()
		if retained[ev.Type] {
			prev, ok := last[ev.Type]
			if ok && bytes.Equal(prev.data, data) && now.Sub(prev.at) < b.dedup {
				return
			}
		}
		seq++
		msg := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, ev.Type, data))
		if retained[ev.Type] {
			last[ev.Type] = lastPayload{data: data, msg: msg, at: now}
		}
		for ch := range clients {
			select {
			case ch <- msg:
			default:
				// slow client; it will resync from the next retained event
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return
		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			for _, typ := range []string{TypeSchedulerUpdated, TypeBackupsUpdated} {
				if p, ok := last[typ]; ok {
					ch <- p.msg
				}
			}
		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}
		case ev := <-b.publishCh:
			broadcast(ev)
		case resp := <-b.countCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The returned channel is closed by
// Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues an event for every client. It is a no-op after Close.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- ev:
	case <-b.stopped:
	}
}

// PublishNoteEvent matches notestore.ChangeFunc. Bulk replacements carry
// no id.
func (b *Broker) PublishNoteEvent(kind notestore.ChangeKind, id uuid.UUID) {
	typ, ok := noteTypes[kind]
	if !ok {
		return
	}
	ref := NoteRef{}
	if id != uuid.Nil {
		ref.ID = id.String()
	}
	b.Publish(Event{Type: typ, Data: ref})
}

// PublishBackups broadcasts the current backup list, or the reason it
// cannot be read.
func (b *Broker) PublishBackups(entries any, err error) {
	if err != nil {
		b.Publish(Event{Type: TypeBackupsUpdated, Data: map[string]string{"error": err.Error()}})
		return
	}
	b.Publish(Event{Type: TypeBackupsUpdated, Data: entries})
}

// PublishScheduler broadcasts a scheduler state change.
func (b *Broker) PublishScheduler(state any) {
	b.Publish(Event{Type: TypeSchedulerUpdated, Data: state})
}

// ServeHTTP streams events to one client (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(heartbeat)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
