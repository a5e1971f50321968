package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type gateSink struct {
	gate   chan struct{}
	events chan Event
}

func (s *gateSink) Emit(_ context.Context, event Event) {
	<-s.gate
	s.events <- event
}

func TestDispatcherDisabledReturnsNil(t *testing.T) {
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

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), Event{EventType: "first"})
	d.Emit(context.Background(), Event{EventType: "second"})
	d.Close()

	for _, want := range []string{"first", "second"} {
		select {
		case got := <-sink.Events():
			if got.EventType != want {
				t.Fatalf("expected %s, got %s", want, got.EventType)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{}), events: make(chan Event, 8)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "burst"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and full buffer")
	}

	close(sink.gate)
	d.Close()
}

func TestDispatcherEmitAfterCloseIsNoop(t *testing.T) {
	sink := NewChannelSink(1)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	d.Close()
	d.Close()

	d.Emit(context.Background(), Event{EventType: "late"})
	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected event after close: %+v", ev)
	default:
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "password_reset_request", AccountID: "acc-1", Success: true})

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("invalid json line %q: %v", line, err)
	}
	if decoded["event_type"] != "password_reset_request" || decoded["account_id"] != "acc-1" {
		t.Fatalf("unexpected payload: %v", decoded)
	}
}

func TestSlogSinkUsesWarnForFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	SlogSink{Logger: logger}.Emit(context.Background(), Event{EventType: "login_failure", Error: "invalid_credentials"})

	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, `"error":"invalid_credentials"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

type panicSink struct {
	delivered chan string
}

func (s panicSink) Emit(_ context.Context, event Event) {
	if event.EventType == "boom" {
		panic("sink exploded")
	}
	s.delivered <- event.EventType
}

func TestDispatcherSurvivesSinkPanic(t *testing.T) {
	var buf bytes.Buffer
	sink := panicSink{delivered: make(chan string, 1)}
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 4,
		Logger:     slog.New(slog.NewJSONHandler(&buf, nil)),
	}, sink)

	d.Emit(context.Background(), Event{EventType: "boom"})
	d.Emit(context.Background(), Event{EventType: "after"})

	select {
	case got := <-sink.delivered:
		if got != "after" {
			t.Fatalf("unexpected event %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher stopped after a sink panic")
	}
	d.Close()

	if d.Panics() != 1 {
		t.Fatalf("expected 1 panic, got %d", d.Panics())
	}
	if !strings.Contains(buf.String(), "audit sink panicked") {
		t.Fatalf("expected panic to be logged, got %s", buf.String())
	}
}

type ctxKey struct{}

type ctxSink struct {
	got chan context.Context
}

func (s ctxSink) Emit(ctx context.Context, _ Event) {
	s.got <- ctx
}

func TestDispatcherDetachesCancellation(t *testing.T) {
	sink := ctxSink{got: make(chan context.Context, 1)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	defer d.Close()

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "req-1"))
	d.Emit(ctx, Event{EventType: "x"})
	cancel()

	select {
	case got := <-sink.got:
		if got.Value(ctxKey{}) != "req-1" {
			t.Fatal("expected request values to reach the sink")
		}
		if got.Err() != nil {
			t.Fatal("request cancellation must not reach the sink")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}
