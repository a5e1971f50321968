package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return out
}

func TestSetupAddsServiceAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Service: "accountd", Version: "1.2.3", Writer: &buf})

	logger.Info("hello", "k", "v")
	line := decodeLine(t, &buf)
	if line["service"] != "accountd" || line["version"] != "1.2.3" || line["k"] != "v" {
		t.Fatalf("unexpected log line: %v", line)
	}
	if _, ok := line["trace_id"]; ok {
		t.Fatal("trace_id must be absent without a span")
	}
}

func TestSetupAddsTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Service: "accountd", Writer: &buf})

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "traced")
	line := decodeLine(t, &buf)
	if line["trace_id"] != traceID.String() || line["span_id"] != spanID.String() {
		t.Fatalf("missing trace context: %v", line)
	}
}

func TestSetupTextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Service: "accountd", Format: "text", Level: "warn", Writer: &buf})

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn: %s", buf.String())
	}
	logger.With("component", "engine").Warn("kept")
	if !strings.Contains(buf.String(), "msg=kept") || !strings.Contains(buf.String(), "component=engine") {
		t.Fatalf("unexpected text output: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
