package core

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(buf *bytes.Buffer) Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func TestDefaultPanicHandler(t *testing.T) {
	// Given: A DefaultPanicHandler writing to a buffer
	var buf bytes.Buffer
	handler := &DefaultPanicHandler{Logger: bufferLogger(&buf)}

	// When: HandlePanic is called
	handler.HandlePanic("listener", "test panic", []byte("stack trace"))

	// Then: The panic is logged at error level with the queue name
	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "queue=listener")
	assert.Contains(t, out, "test panic")
}

func TestDefaultRejectedOperationHandler(t *testing.T) {
	var buf bytes.Buffer
	handler := &DefaultRejectedOperationHandler{Logger: bufferLogger(&buf)}

	handler.HandleRejectedOperation("writer", "restricted")

	assert.Contains(t, buf.String(), "operation discarded")
	assert.Contains(t, buf.String(), "reason=restricted")
}

func TestNilMetrics(t *testing.T) {
	m := &NilMetrics{}

	assert.NotPanics(t, func() {
		m.RecordOperationDuration("q", "ordinary", time.Second)
		m.RecordOperationPanic("q", "boom")
		m.RecordQueueDepth("q", 3)
		m.RecordOperationRejected("q", "stopped")
		m.RecordDelayedOperationFired("q", TimerIDOnlineStateTimeout)
	})
}

// TestAsyncQueueConfig_Defaults verifies nil and partial configs are filled in
func TestAsyncQueueConfig_Defaults(t *testing.T) {
	var nilCfg *AsyncQueueConfig
	c := nilCfg.withDefaults()

	assert.Equal(t, defaultQueueName, c.Name)
	assert.NotNil(t, c.ThreadPool)
	assert.NotNil(t, c.Clock)
	assert.NotNil(t, c.Logger)
	assert.IsType(t, &DefaultPanicHandler{}, c.PanicHandler)
	assert.IsType(t, &NilMetrics{}, c.Metrics)
	assert.IsType(t, &DefaultRejectedOperationHandler{}, c.RejectedOperationHandler)
	assert.Equal(t, defaultHistoryCapacity, c.HistoryCapacity)

	noop := NewNoOpLogger()
	partial := (&AsyncQueueConfig{Name: "custom", Logger: noop, HistoryCapacity: 5}).withDefaults()
	assert.Equal(t, "custom", partial.Name)
	assert.Same(t, noop, partial.Logger)
	assert.Equal(t, 5, partial.HistoryCapacity)

	handler, ok := partial.PanicHandler.(*DefaultPanicHandler)
	require.True(t, ok)
	assert.Same(t, noop, handler.Logger, "default handlers log through the queue logger")
}

func TestDefaultAsyncQueueConfig(t *testing.T) {
	cfg := DefaultAsyncQueueConfig()

	assert.Equal(t, defaultQueueName, cfg.Name)
	assert.NotNil(t, cfg.ThreadPool)
	assert.NotNil(t, cfg.Clock)
	assert.Equal(t, defaultHistoryCapacity, cfg.HistoryCapacity)
}
