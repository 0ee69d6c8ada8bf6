package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

func TestLoggerInfo(t *testing.T) {
	buf := captureOutput(t)

	New("controller").WithSession("sess-1").Info("cell_executed", map[string]any{"cell": "c-1"})

	var e Event
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, LevelInfo, e.Level)
	assert.Equal(t, "controller", e.Component)
	assert.Equal(t, "cell_executed", e.Event)
	assert.Equal(t, "sess-1", e.Session)
	assert.Equal(t, "c-1", e.Extra["cell"])
}

func TestLoggerError(t *testing.T) {
	buf := captureOutput(t)

	New("kernel").Error("init_failed", nil, errors.New("connection refused"))

	var e Event
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, LevelError, e.Level)
	assert.Equal(t, "connection refused", e.Error)
}

func TestTimedEvent(t *testing.T) {
	buf := captureOutput(t)

	start := time.Now().Add(-30 * time.Millisecond)
	New("policy").TimedEvent("review_complete", start, nil)

	var e Event
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.GreaterOrEqual(t, e.Duration, int64(30))
}

func TestNewRequestID(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(t.Context(), "abc123")
	assert.Equal(t, "abc123", GetRequestID(ctx))

	ctx = WithRequestID(t.Context(), "")
	assert.Len(t, GetRequestID(ctx), 16)

	assert.Empty(t, GetRequestID(t.Context()))
}

func TestWrapErrorRecoversPanic(t *testing.T) {
	captureOutput(t)

	handler := NewRecoveryHandler("worker")
	err := handler.WrapError(func() error {
		panic("boom")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in worker")
}

func TestWrapErrorPassesThrough(t *testing.T) {
	handler := NewRecoveryHandler("worker")

	assert.NoError(t, handler.WrapError(func() error { return nil }))

	want := errors.New("plain failure")
	assert.Equal(t, want, handler.WrapError(func() error { return want }))
}
