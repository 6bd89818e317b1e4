package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func jsonLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Component: ComponentLedger,
		Handler:   slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogTransactionWritten(t *testing.T) {
	var buf bytes.Buffer
	NewStructuredLogger(jsonLogger(&buf)).
		LogTransactionWritten(context.Background(), OpCreate, "tx-1", "income_sale", 15050, "Pacotes")

	m := decodeLine(t, &buf)
	if m[FieldTransactionID] != "tx-1" || m[FieldOperation] != OpCreate || m[FieldCategory] != "Pacotes" {
		t.Errorf("unexpected fields: %v", m)
	}
	if m[FieldAmountCents] != float64(15050) {
		t.Errorf("amount_cents = %v", m[FieldAmountCents])
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	fields := NewFields().WithPeriod("2024-06-01", "2024-06-30")
	NewStructuredLogger(jsonLogger(&buf)).
		LogError(context.Background(), "Report failed", errors.New("boom"), ComponentReports, OpReport, fields)

	m := decodeLine(t, &buf)
	if m["level"] != "ERROR" || m[FieldError] != "boom" {
		t.Errorf("unexpected record: %v", m)
	}
	if m[FieldPeriodStart] != "2024-06-01" || m[FieldPeriodEnd] != "2024-06-30" {
		t.Errorf("period fields missing: %v", m)
	}
}

func TestWithErrorSkipsNil(t *testing.T) {
	f := NewFields().WithError(nil)
	if _, ok := f[FieldError]; ok {
		t.Error("nil error should not add a field")
	}
}

func TestMiddlewareInjectsRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf)

	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req_42" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "handled")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	m := decodeLine(t, &buf)
	if m[FieldRequestID] != "req_42" {
		t.Errorf("request_id = %v", m[FieldRequestID])
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected a default logger")
	}
}
