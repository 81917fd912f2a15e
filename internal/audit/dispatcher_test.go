package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestDispatcherStampsAndDelivers(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: "login_success", Success: true})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "login_success" || ev.Timestamp.IsZero() {
			t.Fatalf("unexpected event %+v", ev)
		}
		if _, err := ulid.Parse(ev.ID); err != nil {
			t.Fatalf("expected ULID id, got %q: %v", ev.ID, err)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(context.Context, Event) { <-s.release }

func TestDispatcherDropIfFull(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "refresh_success"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}
	close(sink.release)
	d.Close()
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)
	d.Emit(context.Background(), Event{EventType: "logout", Success: true})
	d.Emit(context.Background(), Event{EventType: "session_invalidated", Error: "refresh rejected"})
	d.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("invalid json line: %v", err)
	}
	if ev.EventType != "session_invalidated" || ev.Error != "refresh rejected" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestDispatcherMasksCredentialMetadata(t *testing.T) {
	sink := NewChannelSink(1)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	md := map[string]string{
		"refresh_token": "r-secret",
		"Authorization": "Bearer a-secret",
		"reason":        "refresh_rejected",
	}
	d.Emit(context.Background(), Event{EventType: "session_invalidated", Metadata: md})
	d.Close()

	ev := <-sink.Events()
	if ev.Metadata["refresh_token"] != redacted || ev.Metadata["Authorization"] != redacted {
		t.Fatalf("credential metadata not masked: %v", ev.Metadata)
	}
	if ev.Metadata["reason"] != "refresh_rejected" {
		t.Fatalf("ordinary metadata altered: %v", ev.Metadata)
	}
	if md["refresh_token"] != "r-secret" {
		t.Fatal("caller map must not be mutated")
	}
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) { panic("sink exploded") }

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, panicSink{})
	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Close()

	if d.Failed() != 2 {
		t.Fatalf("expected 2 failed deliveries, got %d", d.Failed())
	}
}

func TestDispatcherPreservesOrderAndIgnoresEmitAfterClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	types := []string{"login_success", "refresh_success", "refresh_success", "logout"}
	for _, typ := range types {
		d.Emit(context.Background(), Event{EventType: typ})
	}
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{EventType: "late"})

	for i, want := range types {
		ev := <-sink.Events()
		if ev.EventType != want {
			t.Fatalf("event %d: expected %s, got %s", i, want, ev.EventType)
		}
	}
	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected event after close: %+v", ev)
	default:
	}
}

func TestDispatcherBlockingEmitHonorsContext(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	// One event occupies the sink, one fills the buffer.
	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{EventType: "c"})
	if d.Dropped() != 1 {
		t.Fatalf("expected the timed out event to count as dropped, got %d", d.Dropped())
	}

	close(sink.release)
	d.Close()
}

func TestSlogSinkGroupsMetadata(t *testing.T) {
	var buf bytes.Buffer
	sink := SlogSink{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	sink.Emit(context.Background(), Event{
		ID:        "01J0000000000000000000000",
		EventType: "logout",
		Success:   false,
		Error:     "network",
		Metadata:  map[string]string{"had_session": "true"},
	})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "audit" || rec["event"] != "logout" || rec["level"] != "WARN" {
		t.Fatalf("unexpected record %v", rec)
	}
	md, ok := rec["metadata"].(map[string]any)
	if !ok || md["had_session"] != "true" {
		t.Fatalf("expected grouped metadata, got %v", rec["metadata"])
	}
}

type failingWriter struct{ calls int }

func (w *failingWriter) Write([]byte) (int, error) {
	w.calls++
	return 0, errors.New("disk full")
}

func TestJSONWriterSinkStopsAfterWriteError(t *testing.T) {
	w := &failingWriter{}
	sink := NewJSONWriterSink(w)
	sink.Emit(context.Background(), Event{EventType: "logout"})
	sink.Emit(context.Background(), Event{EventType: "logout"})

	if sink.Err() == nil {
		t.Fatal("expected the write error to be kept")
	}
	if w.calls != 1 {
		t.Fatalf("expected writes to stop after the first error, got %d", w.calls)
	}
}
