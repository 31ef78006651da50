package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newJSONLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Level: slog.LevelDebug, Format: "json", Component: component, Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_AddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, ComponentLedger)

	l.Info("hello", FieldOrderNumber, "P-1")
	l.WithComponent(ComponentAuth).Warn("careful")
	l.Info("explicit", FieldComponent, ComponentHTTP)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "ledger", lines[0][FieldComponent])
	assert.Equal(t, "P-1", lines[0][FieldOrderNumber])
	assert.Equal(t, "auth", lines[1][FieldComponent])
	assert.Equal(t, "http", lines[2][FieldComponent])
}

func TestMiddleware_RequestScopedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := newJSONLogger(&buf, ComponentHTTP)

	h := Middleware(base)(RequestIDMiddleware(func(r *http.Request) string {
		return r.Header.Get("X-Request-ID")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside")
	})))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Request-ID", "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-42", lines[0][FieldRequestID])
}

func TestFromContext_Default(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, ComponentApp, l.Component())
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newJSONLogger(&buf, ComponentApp))
	ctx := context.Background()

	sl.LogOrderCreated(ctx, 7, "P-7", 3, 30000, 3)
	req := httptest.NewRequest(http.MethodPost, "/orders?x=1", nil)
	sl.LogHTTPEnd(ctx, req, "req-1", http.StatusConflict, 12, "10.0.0.1")
	sl.LogError(ctx, "boom", errors.New("disk full"), ComponentStorage, OpCreate, nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)

	assert.Equal(t, "Order created", lines[0]["msg"])
	assert.Equal(t, "ledger", lines[0][FieldComponent])
	assert.Equal(t, float64(30000), lines[0][FieldAmountCents])

	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, float64(409), lines[1][FieldStatusCode])
	assert.Equal(t, false, lines[1][FieldSuccess])

	assert.Equal(t, "ERROR", lines[2]["level"])
	assert.Equal(t, "disk full", lines[2][FieldError])
	assert.Equal(t, "storage", lines[2][FieldComponent])
}
