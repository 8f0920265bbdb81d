package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIDSourceIsOrdered(t *testing.T) {
	ids := NewIDSource()
	now := time.Unix(1000, 0)
	a := ids.Next(now)
	b := ids.Next(now)
	c := ids.Next(now.Add(time.Millisecond))
	if len(a) != 26 {
		t.Fatalf("expected 26-char ulid, got %q", a)
	}
	if !(a < b && b < c) {
		t.Fatalf("ids not increasing: %s %s %s", a, b, c)
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{ID: "01", EventType: "login_success", AccountID: "42", Success: true})
	sink.Emit(context.Background(), Event{ID: "02", EventType: "login_failure", Error: "invalid_credentials"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.AccountID != "42" || !ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "logout"})
	}
	d.Close()

	if got := len(sink.Events()); got != 5 {
		t.Fatalf("expected 5 delivered events after close, got %d", got)
	}
	d.Emit(context.Background(), Event{EventType: "after_close"})
	if got := len(sink.Events()); got != 5 {
		t.Fatalf("emit after close must be ignored, got %d", got)
	}
}

type failingWriter struct{ calls int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	return 0, errors.New("disk full")
}

func TestJSONWriterSinkKeepsFirstError(t *testing.T) {
	w := &failingWriter{}
	sink := NewJSONWriterSink(w)
	if sink.Err() != nil {
		t.Fatal("fresh sink must report no error")
	}
	sink.Emit(context.Background(), Event{EventType: "logout"})
	sink.Emit(context.Background(), Event{EventType: "logout_all"})

	if err := sink.Err(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected write error, got %v", err)
	}
	if w.calls != 2 {
		t.Fatalf("sink must keep writing after a failure, calls=%d", w.calls)
	}

	var nilSink *JSONWriterSink
	nilSink.Emit(context.Background(), Event{})
	if nilSink.Err() != nil {
		t.Fatal("nil sink reports no error")
	}
}

type blockingSink struct{ release chan struct{} }

func (s blockingSink) Emit(context.Context, Event) { <-s.release }

func TestDispatcherDropIfFull(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "login_failure"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a stalled sink")
	}
	close(sink.release)
	d.Close()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled dispatcher must be nil")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reports no drops")
	}
}

func TestDispatcherStampsMissingFields(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, Now: func() time.Time { return at }}, sink)

	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Emit(context.Background(), Event{EventType: "logout_all"})
	preset := time.Unix(5, 0).UTC()
	d.Emit(context.Background(), Event{ID: "fixed", Timestamp: preset, EventType: "login_success"})
	d.Close()

	first, second, third := <-sink.Events(), <-sink.Events(), <-sink.Events()
	if !first.Timestamp.Equal(at) || len(first.ID) != 26 {
		t.Fatalf("expected stamped event, got %+v", first)
	}
	if !(first.ID < second.ID) {
		t.Fatalf("ids must follow emission order: %s %s", first.ID, second.ID)
	}
	if third.ID != "fixed" || !third.Timestamp.Equal(preset) {
		t.Fatalf("preset fields must be kept, got %+v", third)
	}
}

type ctxKey struct{}

type ctxSink struct{ got chan any }

func (s ctxSink) Emit(ctx context.Context, _ Event) { s.got <- ctx.Value(ctxKey{}) }

func TestDispatcherCarriesContextValuesPastCancel(t *testing.T) {
	sink := ctxSink{got: make(chan any, 1)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "req-7"))
	d.Emit(ctx, Event{EventType: "logout"})
	cancel()
	d.Close()

	if v := <-sink.got; v != "req-7" {
		t.Fatalf("sink lost request value, got %v", v)
	}
}

func TestDispatcherCancelledEmitterCountsDrop(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	// One event is held by the sink, one fills the buffer.
	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{EventType: "c"})

	if d.Dropped() != 1 {
		t.Fatalf("expected 1 drop, got %d", d.Dropped())
	}
	close(sink.release)
	d.Close()
	d.Close()
}
