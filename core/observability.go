package core

import "time"

// OperationExecutionRecord captures a completed operation.
type OperationExecutionRecord struct {
	Seq        uint64
	Name       string
	QueueName  string
	Kind       string
	TimerID    TimerID // meaningful when Kind is "delayed"
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Panicked   bool
}

// QueueStats represents runtime observability state for an AsyncQueue.
type QueueStats struct {
	ID              string
	Name            string
	State           QueueState
	Pending         int
	Delayed         int
	Running         bool
	Rejected        int64
	Executed        int64
	LastOperation   string
	LastOperationAt time.Time
}

// PoolStats represents runtime observability state for a thread pool.
type PoolStats struct {
	ID      string
	Workers int
	Queued  int
	Active  int
	Running bool
}
