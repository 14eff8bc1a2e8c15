package core

import (
	"time"
)

// =============================================================================
// ThreadPool: where drain loops run
// =============================================================================

// ThreadPool runs an AsyncQueue's drain loop. The queue posts at most one
// loop at a time, so a pool shared by many queues still executes each
// queue's operations one by one. PostInternal returns an error if the task
// will never run; the queue then stops itself.
type ThreadPool interface {
	PostInternal(task func()) error
}

// goroutineThreadPool starts a fresh goroutine for each drain loop.
type goroutineThreadPool struct{}

func (goroutineThreadPool) PostInternal(task func()) error {
	go task()
	return nil
}

// =============================================================================
// PanicHandler: Interface for handling operation panics
// =============================================================================

// PanicHandler is called when an operation panics during execution.
// Contract violations are not routed here; they always propagate.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when an operation panics.
	//
	// Parameters:
	// - queueName: The name of the queue where the panic occurred
	// - panicInfo: The panic value recovered from the operation
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(queueName string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs the panic through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs panic information at error level.
func (h *DefaultPanicHandler) HandlePanic(queueName string, panicInfo any, stackTrace []byte) {
	l := h.Logger
	if l == nil {
		l = logger()
	}
	l.Error("operation panicked",
		F("queue", queueName),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting operation metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting execution.
type Metrics interface {
	// RecordOperationDuration records how long an operation took to execute.
	// kind is "ordinary", "exempt" or "delayed".
	RecordOperationDuration(queueName string, kind string, duration time.Duration)

	// RecordOperationPanic records that an operation panicked.
	RecordOperationPanic(queueName string, panicInfo any)

	// RecordQueueDepth records the current number of ready operations.
	RecordQueueDepth(queueName string, depth int)

	// RecordOperationRejected records a discarded submission
	// (reason "restricted" or "stopped").
	RecordOperationRejected(queueName string, reason string)

	// RecordDelayedOperationFired records a delayed operation leaving the
	// pending set to run.
	RecordDelayedOperationFired(queueName string, timerID TimerID)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordOperationDuration(queueName string, kind string, duration time.Duration) {
}
func (m *NilMetrics) RecordOperationPanic(queueName string, panicInfo any)          {}
func (m *NilMetrics) RecordQueueDepth(queueName string, depth int)                  {}
func (m *NilMetrics) RecordOperationRejected(queueName string, reason string)       {}
func (m *NilMetrics) RecordDelayedOperationFired(queueName string, timerID TimerID) {}

// =============================================================================
// RejectedOperationHandler
// =============================================================================

// RejectedOperationHandler is told about every submission the queue
// discarded because it was restricted or stopped. Discarding is not an error
// for the submitter; this hook exists for diagnostics only.
type RejectedOperationHandler interface {
	HandleRejectedOperation(queueName string, reason string)
}

// DefaultRejectedOperationHandler logs rejected operations at debug level.
type DefaultRejectedOperationHandler struct {
	Logger Logger
}

func (h *DefaultRejectedOperationHandler) HandleRejectedOperation(queueName string, reason string) {
	l := h.Logger
	if l == nil {
		l = logger()
	}
	l.Debug("operation discarded", F("queue", queueName), F("reason", reason))
}

// =============================================================================
// AsyncQueueConfig
// =============================================================================

// AsyncQueueConfig holds configuration options for AsyncQueue.
// All fields are optional; nil fields get default implementations.
type AsyncQueueConfig struct {
	// Name labels logs, metrics and stats. Defaults to "async-queue".
	Name string

	// ThreadPool runs the drain loop. Defaults to one goroutine per busy period.
	ThreadPool ThreadPool

	// Clock drives delayed operations. Defaults to RealClock().
	Clock Clock

	// Logger defaults to the package logger.
	Logger Logger

	// PanicHandler defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics defaults to NilMetrics.
	Metrics Metrics

	// RejectedOperationHandler defaults to DefaultRejectedOperationHandler.
	RejectedOperationHandler RejectedOperationHandler

	// HistoryCapacity bounds RecentOperations. Defaults to 100.
	HistoryCapacity int
}

// DefaultAsyncQueueConfig returns a config with default handlers.
func DefaultAsyncQueueConfig() *AsyncQueueConfig {
	return &AsyncQueueConfig{
		Name:            defaultQueueName,
		ThreadPool:      goroutineThreadPool{},
		Clock:           RealClock(),
		Metrics:         &NilMetrics{},
		HistoryCapacity: defaultHistoryCapacity,
	}
}

const defaultQueueName = "async-queue"

func (c *AsyncQueueConfig) withDefaults() AsyncQueueConfig {
	out := AsyncQueueConfig{}
	if c != nil {
		out = *c
	}
	if out.Name == "" {
		out.Name = defaultQueueName
	}
	if out.ThreadPool == nil {
		out.ThreadPool = goroutineThreadPool{}
	}
	if out.Clock == nil {
		out.Clock = RealClock()
	}
	if out.Logger == nil {
		out.Logger = logger()
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &DefaultPanicHandler{Logger: out.Logger}
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.RejectedOperationHandler == nil {
		out.RejectedOperationHandler = &DefaultRejectedOperationHandler{Logger: out.Logger}
	}
	if out.HistoryCapacity <= 0 {
		out.HistoryCapacity = defaultHistoryCapacity
	}
	return out
}
