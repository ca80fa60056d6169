package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestContextFieldsReachOutput(t *testing.T) {
	var buf bytes.Buffer
	base := New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "test"})

	ctx := base.WithContext(context.Background())
	ctx = SetRequestID(ctx, "req-1")
	ctx = SetMemeID(ctx, "meme-1")

	if got := GetRequestID(ctx); got != "req-1" {
		t.Fatalf("GetRequestID = %q, want req-1", got)
	}
	if got := GetMemeID(ctx); got != "meme-1" {
		t.Fatalf("GetMemeID = %q, want meme-1", got)
	}

	With(Fields{FieldDurationMs: int64(12)}).Info(ctx, "done %d", 1)

	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	for key, want := range map[string]interface{}{
		"service":       "test",
		"message":       "done 1",
		FieldRequestID:  "req-1",
		FieldMemeID:     "meme-1",
		FieldDurationMs: float64(12),
	} {
		if line[key] != want {
			t.Errorf("field %s = %v, want %v", key, line[key], want)
		}
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != GetDefault() {
		t.Fatal("expected default logger for bare context")
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&Config{Level: "info", Format: "text", Output: &buf}).Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("unexpected text output %q", buf.String())
	}
}
