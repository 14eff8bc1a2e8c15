package asyncqueue

import "github.com/Swind/go-async-queue/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the asyncqueue package for most use cases.

// Operation is the unit of work (Closure)
type Operation = core.Operation

// AsyncQueue executes operations one at a time, in order
type AsyncQueue = core.AsyncQueue

// AsyncQueueConfig configures a new AsyncQueue
type AsyncQueueConfig = core.AsyncQueueConfig

// DelayedOperation is the cancelable handle returned by EnqueueAfterDelay
type DelayedOperation = core.DelayedOperation

// TimerID tags delayed operations
type TimerID = core.TimerID

// QueueState is the lifecycle state of a queue
type QueueState = core.QueueState

// ContractViolation is reported on programmer errors such as reentrant Enqueue
type ContractViolation = core.ContractViolation

// ThrowHandler receives contract violations
type ThrowHandler = core.ThrowHandler

// ExponentialBackoff schedules retries with growing delays
type ExponentialBackoff = core.ExponentialBackoff

// RetryPolicy configures an ExponentialBackoff
type RetryPolicy = core.RetryPolicy

// Logger is the structured logging interface
type Logger = core.Logger

// ThreadPool runs drain loops
type ThreadPool = core.ThreadPool

// Timer IDs
const (
	TimerIDAll                           = core.TimerIDAll
	TimerIDListenStreamIdle              = core.TimerIDListenStreamIdle
	TimerIDListenStreamConnectionBackoff = core.TimerIDListenStreamConnectionBackoff
	TimerIDWriteStreamIdle               = core.TimerIDWriteStreamIdle
	TimerIDWriteStreamConnectionBackoff  = core.TimerIDWriteStreamConnectionBackoff
	TimerIDOnlineStateTimeout            = core.TimerIDOnlineStateTimeout
)

// Queue states
const (
	StateRunning    = core.StateRunning
	StateRestricted = core.StateRestricted
	StateStopped    = core.StateStopped
)

var (
	DefaultAsyncQueueConfig = core.DefaultAsyncQueueConfig
	DefaultRetryPolicy      = core.DefaultRetryPolicy
	SetThrowHandler         = core.SetThrowHandler
	DefaultThrowHandler     = core.DefaultThrowHandler
)

// NewAsyncQueue creates a queue with its own drain goroutine. cfg may be nil.
func NewAsyncQueue(cfg *AsyncQueueConfig) *AsyncQueue {
	return core.NewAsyncQueue(cfg)
}

// NewExponentialBackoff creates a backoff on queue tagged timerID.
func NewExponentialBackoff(queue *AsyncQueue, timerID TimerID, policy RetryPolicy) (*ExponentialBackoff, error) {
	return core.NewExponentialBackoff(queue, timerID, policy)
}
