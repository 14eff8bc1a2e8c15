package core_test

import (
	"sync"
	"testing"
	"time"

	"github.com/Swind/go-async-queue/core"
	"github.com/Swind/go-async-queue/queuetest"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// newTestQueue creates a quiet queue driven by a FakeClock and installs a
// throw handler that panics without logging. The queue is stopped on cleanup.
func newTestQueue(t *testing.T, opts ...func(*core.AsyncQueueConfig)) (*core.AsyncQueue, *queuetest.FakeClock) {
	t.Helper()
	queuetest.RestoreThrowHandler(t, queuetest.PanickingThrowHandler)

	clock := queuetest.NewFakeClock(testEpoch)
	cfg := &core.AsyncQueueConfig{
		Name:   t.Name(),
		Clock:  clock,
		Logger: core.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	queue := core.NewAsyncQueue(cfg)
	t.Cleanup(queue.Stop)
	return queue, clock
}

// catchViolation runs f and returns the contract violation it panicked
// with, or nil.
func catchViolation(f func()) (v *core.ContractViolation) {
	defer func() {
		if r := recover(); r != nil {
			cv, ok := r.(*core.ContractViolation)
			if !ok {
				panic(r)
			}
			v = cv
		}
	}()
	f()
	return nil
}

// steps records the order operations ran in.
type steps struct {
	mu  sync.Mutex
	buf []byte
}

func (s *steps) add(c byte) func() {
	return func() {
		s.mu.Lock()
		s.buf = append(s.buf, c)
		s.mu.Unlock()
	}
}

func (s *steps) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buf)
}

// recordingMetrics keeps every call for inspection.
type recordingMetrics struct {
	mu        sync.Mutex
	durations map[string]int
	panics    int
	depths    []int
	rejected  map[string]int
	fired     []core.TimerID
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		durations: make(map[string]int),
		rejected:  make(map[string]int),
	}
}

func (m *recordingMetrics) RecordOperationDuration(queueName string, kind string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations[kind]++
}

func (m *recordingMetrics) RecordOperationPanic(queueName string, panicInfo any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics++
}

func (m *recordingMetrics) RecordQueueDepth(queueName string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depths = append(m.depths, depth)
}

func (m *recordingMetrics) RecordOperationRejected(queueName string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}

func (m *recordingMetrics) RecordDelayedOperationFired(queueName string, timerID core.TimerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fired = append(m.fired, timerID)
}

func (m *recordingMetrics) snapshot() (durations map[string]int, panics int, rejected map[string]int, fired []core.TimerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	durations = make(map[string]int, len(m.durations))
	for k, v := range m.durations {
		durations[k] = v
	}
	rejected = make(map[string]int, len(m.rejected))
	for k, v := range m.rejected {
		rejected[k] = v
	}
	return durations, m.panics, rejected, append([]core.TimerID(nil), m.fired...)
}

type recordingPanicHandler struct {
	mu     sync.Mutex
	values []any
}

func (h *recordingPanicHandler) HandlePanic(queueName string, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values = append(h.values, panicInfo)
}

func (h *recordingPanicHandler) Values() []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]any(nil), h.values...)
}

type recordingRejectedHandler struct {
	mu      sync.Mutex
	reasons []string
}

func (h *recordingRejectedHandler) HandleRejectedOperation(queueName string, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reasons = append(h.reasons, reason)
}

func (h *recordingRejectedHandler) Reasons() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.reasons...)
}
