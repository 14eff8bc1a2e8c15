package core

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// WorkScheduler is the backlog of a shared thread pool: a FIFO of drain
// loops posted by the queues hosted on the pool, plus the counters the pool
// reports. Workers block in GetWork until something is posted.
type WorkScheduler struct {
	mu     sync.Mutex
	queue  []func()
	signal chan struct{}

	workerCount int

	metricQueued int32 // Waiting in queue
	metricActive int32 // Executing in worker

	logger Logger

	// Lifecycle
	shuttingDown atomic.Bool
}

// NewWorkScheduler creates a backlog sized for workerCount workers.
func NewWorkScheduler(workerCount int, logger Logger) *WorkScheduler {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &WorkScheduler{
		queue:       make([]func(), 0, defaultQueueCap),
		signal:      make(chan struct{}, workerCount*2),
		workerCount: workerCount,
		logger:      logger,
	}
}

// PostInternal appends task to the backlog. After shutdown the task is
// dropped and ErrPoolNotRunning is returned.
func (s *WorkScheduler) PostInternal(task func()) error {
	if s.shuttingDown.Load() {
		s.logger.Warn("work posted after shutdown dropped")
		return ErrPoolNotRunning
	}

	s.mu.Lock()
	s.queue = append(s.queue, task)
	s.mu.Unlock()
	atomic.AddInt32(&s.metricQueued, 1)

	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full, but task is already queued
	}
	return nil
}

func (s *WorkScheduler) pop() (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	task := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return task, true
}

// GetWork (Called by Worker)
func (s *WorkScheduler) GetWork(stopCh <-chan struct{}) (func(), bool) {
	for {
		if task, ok := s.pop(); ok {
			atomic.AddInt32(&s.metricQueued, -1)
			return task, true
		}

		select {
		case <-s.signal:
			continue
		case <-stopCh:
			return nil, false
		}
	}
}

// Shutdown stops accepting work and drops the backlog.
func (s *WorkScheduler) Shutdown() {
	s.shuttingDown.Store(true)

	s.mu.Lock()
	dropped := len(s.queue)
	s.queue = make([]func(), 0, defaultQueueCap)
	s.mu.Unlock()
	atomic.AddInt32(&s.metricQueued, -int32(dropped))
}

// ShutdownGraceful waits for all queued and active work to complete
// Returns error if timeout is exceeded before work completes
func (s *WorkScheduler) ShutdownGraceful(timeout time.Duration) error {
	s.shuttingDown.Store(true)

	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			s.Shutdown()
			return fmt.Errorf("shutdown graceful timeout after %v, forced clearing", timeout)
		case <-ticker.C:
			if s.QueuedTaskCount() == 0 && s.ActiveTaskCount() == 0 {
				return nil
			}
		}
	}
}

// Metrics
func (s *WorkScheduler) WorkerCount() int     { return s.workerCount }
func (s *WorkScheduler) QueuedTaskCount() int { return int(atomic.LoadInt32(&s.metricQueued)) }
func (s *WorkScheduler) ActiveTaskCount() int { return int(atomic.LoadInt32(&s.metricActive)) }

func (s *WorkScheduler) OnTaskStart() {
	atomic.AddInt32(&s.metricActive, 1)
}

func (s *WorkScheduler) OnTaskEnd() {
	atomic.AddInt32(&s.metricActive, -1)
}
