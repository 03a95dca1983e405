package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{Level: slog.LevelDebug, Format: "json", Component: ComponentApp, Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		rec := map[string]any{}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("invalid json log line %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf).WithComponent(ComponentStorage)
	logger.Info("opened", FieldBackend, "sqlite")

	recs := decodeLines(t, &buf)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0][FieldComponent] != ComponentStorage || recs[0][FieldBackend] != "sqlite" {
		t.Fatalf("unexpected record %v", recs[0])
	}
}

func TestLogHTTPEndLevelFollowsStatus(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{502, "ERROR"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		sl := NewStructuredLogger(newBufferLogger(&buf))
		r := httptest.NewRequest("GET", "/ui/summary", nil)
		sl.LogHTTPEnd(context.Background(), r, tc.status, 12, "req-1", "10.0.0.1")

		recs := decodeLines(t, &buf)
		if len(recs) != 1 {
			t.Fatalf("status %d: expected 1 record, got %d", tc.status, len(recs))
		}
		if recs[0]["level"] != tc.level {
			t.Errorf("status %d: level = %v, want %s", tc.status, recs[0]["level"], tc.level)
		}
		if recs[0][FieldRequestID] != "req-1" || recs[0][FieldComponent] != ComponentHTTP {
			t.Errorf("status %d: missing fields in %v", tc.status, recs[0])
		}
	}
}

func TestLogErrorIncludesOperation(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf))
	sl.LogError(context.Background(), "delete failed", errors.New("boom"), ComponentExpense, OpDelete, NewFields().WithUser("u1"))

	recs := decodeLines(t, &buf)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec[FieldError] != "boom" || rec[FieldOperation] != OpDelete || rec[FieldUserID] != "u1" || rec[FieldComponent] != ComponentExpense {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected a default logger")
	}
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)
	ctx := NewContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatal("expected logger from context")
	}
}
