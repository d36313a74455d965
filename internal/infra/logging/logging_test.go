//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"rankblaze-entitlements/internal/config"
)

func TestWith_AttachesContextFields(t *testing.T) {
	// --- Arrange ---
	var buf bytes.Buffer
	base := newWithWriter(config.LogConfig{Level: "info", Format: "json"}, false, &buf)
	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithOrderID(ctx, "ord_u1_t1_X")
	ctx = WithTrigger(ctx, "callback")

	// --- Act ---
	With(ctx, base).Info().Msg("hello")

	// --- Assert ---
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, buf.String())
	}
	if line["trace_id"] != "trace-1" || line["order_id"] != "ord_u1_t1_X" || line["trigger"] != "callback" {
		t.Errorf("missing context fields: %v", line)
	}
	if TraceID(ctx) != "trace-1" {
		t.Errorf("TraceID() = %q", TraceID(ctx))
	}
}

func TestRedact(t *testing.T) {
	t.Run("dev shows the value", func(t *testing.T) {
		if got := Redact("supersecretvalue", true); got != "supersecretvalue" {
			t.Errorf("got %q", got)
		}
	})
	t.Run("short values are fully masked", func(t *testing.T) {
		if got := Redact("abc", false); got != "***" {
			t.Errorf("got %q", got)
		}
	})
	t.Run("long values keep a preview", func(t *testing.T) {
		if got := Redact("supersecretvalue", false); got != "supe...ue" {
			t.Errorf("got %q", got)
		}
	})
}
