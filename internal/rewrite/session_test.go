package rewrite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/starford/stickies/internal/kv"
	"github.com/starford/stickies/internal/models"
	"github.com/starford/stickies/internal/notestore"
)

type scriptedStream struct {
	deltas []string
	err    error
	closed bool
}

func (s *scriptedStream) Recv() (string, error) {
	if len(s.deltas) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	d := s.deltas[0]
	s.deltas = s.deltas[1:]
	return d, nil
}

func (s *scriptedStream) Close() error { s.closed = true; return nil }

type scriptedCompleter struct {
	stream *scriptedStream
	err    error
}

func (c *scriptedCompleter) Stream(context.Context, string, models.Note) (DeltaStream, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

func collect(ch <-chan Partial) []Partial {
	var out []Partial
	for p := range ch {
		out = append(out, p)
	}
	return out
}

func TestSessionStreamsPartials(t *testing.T) {
	stream := &scriptedStream{deltas: []string{"Hel", "lo", " world"}}
	s := NewSession(&scriptedCompleter{stream: stream})
	note := models.Note{ID: uuid.New(), Text: models.PlainText("hello"), Language: models.LanguageSwift}

	ch, err := s.Start(context.Background(), "capitalize", note)
	if err != nil {
		t.Fatal(err)
	}
	parts := collect(ch)
	if len(parts) != 4 {
		t.Fatalf("got %d partials", len(parts))
	}
	want := []string{"Hel", "Hello", "Hello world", "Hello world"}
	for i, p := range parts {
		if p.Note.Text.String() != want[i] {
			t.Errorf("partial %d = %q, want %q", i, p.Note.Text.String(), want[i])
		}
		if p.Note.ID != note.ID || p.Note.Language != models.LanguageSwift {
			t.Errorf("partial %d lost identity: %+v", i, p.Note)
		}
	}
	if !parts[3].Done {
		t.Error("last partial not marked done")
	}
	if st, _ := s.State(); st != StateFinished {
		t.Errorf("state = %s", st)
	}
	if !stream.closed {
		t.Error("stream not closed")
	}

	prev, ok := s.Revert()
	if !ok || prev.Text.String() != "hello" {
		t.Errorf("Revert = %+v, %v", prev, ok)
	}
}

func TestSessionStreamError(t *testing.T) {
	boom := errors.New("guardrail")
	s := NewSession(&scriptedCompleter{stream: &scriptedStream{deltas: []string{"x"}, err: boom}})
	ch, err := s.Start(context.Background(), "p", models.NewNote("a", nil))
	if err != nil {
		t.Fatal(err)
	}
	parts := collect(ch)
	last := parts[len(parts)-1]
	if !errors.Is(last.Err, boom) {
		t.Errorf("last = %+v", last)
	}
	if st, serr := s.State(); st != StateFailed || !errors.Is(serr, boom) {
		t.Errorf("state = %s, %v", st, serr)
	}
}

func TestSessionStartError(t *testing.T) {
	s := NewSession(&scriptedCompleter{err: errors.New("no key")})
	if _, err := s.Start(context.Background(), "p", models.NewNote("a", nil)); err == nil {
		t.Fatal("expected error")
	}
	if st, _ := s.State(); st != StateFailed {
		t.Errorf("state = %s", st)
	}
	if _, err := s.Start(context.Background(), "  ", models.NewNote("a", nil)); err == nil {
		t.Error("empty prompt accepted")
	}
}

func TestSessionCancelDiscards(t *testing.T) {
	s := NewSession(&scriptedCompleter{stream: &scriptedStream{deltas: []string{"a", "b", "c"}}})
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Start(ctx, "p", models.NewNote("orig", nil))
	if err != nil {
		t.Fatal(err)
	}
	<-ch
	cancel()
	for range ch {
	}
	if st, _ := s.State(); st == StateGenerating {
		t.Error("still generating after cancel")
	}
	if prev, _ := s.Revert(); prev.Text.String() != "orig" {
		t.Errorf("Revert = %q", prev.Text.String())
	}
}

func TestRevertBeforeStart(t *testing.T) {
	if _, ok := NewSession(nil).Revert(); ok {
		t.Error("Revert with no snapshot")
	}
}

func TestApplyWritesThroughStore(t *testing.T) {
	store := notestore.New(kv.NewMemory(), nil)
	n, _ := store.Create(models.Title("T"))
	edited := n.WithID(n.ID)
	edited.Text = models.PlainText("rewritten")
	if _, err := Apply(store, edited); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Get(n.ID)
	if got.Text.String() != "rewritten" || got.DisplayTitle() != "T" {
		t.Errorf("stored = %+v", got)
	}
}

func TestOpenAIStream(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range []string{"Fixed", " note"} {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", d)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "test-model"})
	note := models.NewNote("fix me", models.Title("Todo"))
	stream, err := c.Stream(context.Background(), "fix typos", note)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		d, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		b.WriteString(d)
	}
	if b.String() != "Fixed note" {
		t.Errorf("streamed %q", b.String())
	}
	if !strings.Contains(gotBody, "fix typos") || !strings.Contains(gotBody, `"stream":true`) {
		t.Errorf("request body = %s", gotBody)
	}
}
