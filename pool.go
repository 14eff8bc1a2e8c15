package asyncqueue

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-async-queue/core"
)

// GoroutineThreadPool manages a set of worker goroutines that run the drain
// loops of the queues created on it. Many queues can share one pool; each
// queue still executes its operations one at a time.
type GoroutineThreadPool struct {
	id        string
	workers   int
	scheduler *core.WorkScheduler
	logger    core.Logger
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex
}

var _ core.ThreadPool = (*GoroutineThreadPool)(nil)

// NewGoroutineThreadPool creates a new GoroutineThreadPool
func NewGoroutineThreadPool(id string, workers int) *GoroutineThreadPool {
	return NewGoroutineThreadPoolWithLogger(id, workers, nil)
}

// NewGoroutineThreadPoolWithLogger creates a pool that reports dropped work
// and worker panics through logger.
func NewGoroutineThreadPoolWithLogger(id string, workers int, logger core.Logger) *GoroutineThreadPool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	return &GoroutineThreadPool{
		id:        id,
		workers:   workers,
		scheduler: core.NewWorkScheduler(workers, logger),
		logger:    logger,
	}
}

// Start starts all worker goroutines
func (tg *GoroutineThreadPool) Start(ctx context.Context) {
	tg.runningMu.Lock()
	defer tg.runningMu.Unlock()

	if tg.running {
		return // Already running
	}

	tg.ctx, tg.cancel = context.WithCancel(ctx)
	tg.running = true

	for i := 0; i < tg.workers; i++ {
		tg.wg.Add(1)
		go tg.workerLoop(i, tg.ctx)
	}
}

// Stop stops the thread pool. Drain loops still in the backlog are dropped,
// which leaves their queues unable to make progress.
func (tg *GoroutineThreadPool) Stop() {
	// Always shutdown scheduler to clean up resources even if pool was never started
	tg.scheduler.Shutdown()

	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return
	}
	tg.runningMu.Unlock()

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()
}

// StopGraceful stops the thread pool gracefully, waiting for queued drain loops to complete
// Returns error if timeout is exceeded before they complete
func (tg *GoroutineThreadPool) StopGraceful(timeout time.Duration) error {
	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return nil
	}
	tg.runningMu.Unlock()

	err := tg.scheduler.ShutdownGraceful(timeout)

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()

	return err
}

// ID returns the ID of the thread pool
func (tg *GoroutineThreadPool) ID() string {
	return tg.id
}

// IsRunning returns whether the thread pool is running
func (tg *GoroutineThreadPool) IsRunning() bool {
	tg.runningMu.RLock()
	defer tg.runningMu.RUnlock()
	return tg.running
}

// workerLoop is the main loop for each worker
func (tg *GoroutineThreadPool) workerLoop(id int, ctx context.Context) {
	defer tg.wg.Done()
	stopCh := ctx.Done()

	for {
		task, ok := tg.scheduler.GetWork(stopCh)
		if !ok {
			return
		}

		tg.scheduler.OnTaskStart()
		tg.runTask(id, task)
	}
}

func (tg *GoroutineThreadPool) runTask(id int, task func()) {
	defer func() {
		tg.scheduler.OnTaskEnd()
		if r := recover(); r != nil {
			if v, ok := r.(*core.ContractViolation); ok {
				panic(v)
			}
			tg.logger.Error("worker panic", core.F("pool", tg.id), core.F("worker", id), core.F("panic", r))
		}
	}()
	task()
}

// Join waits for all worker goroutines to finish
func (tg *GoroutineThreadPool) Join() {
	tg.wg.Wait()
}

// WorkerCount returns the number of workers
func (tg *GoroutineThreadPool) WorkerCount() int {
	return tg.workers
}

func (tg *GoroutineThreadPool) QueuedTaskCount() int {
	return tg.scheduler.QueuedTaskCount()
}

func (tg *GoroutineThreadPool) ActiveTaskCount() int {
	return tg.scheduler.ActiveTaskCount()
}

// PostInternal implements core.ThreadPool. It returns core.ErrPoolNotRunning
// once the pool has been stopped.
func (tg *GoroutineThreadPool) PostInternal(task func()) error {
	return tg.scheduler.PostInternal(task)
}

// Stats returns a snapshot of the pool.
func (tg *GoroutineThreadPool) Stats() core.PoolStats {
	return core.PoolStats{
		ID:      tg.id,
		Workers: tg.workers,
		Queued:  tg.QueuedTaskCount(),
		Active:  tg.ActiveTaskCount(),
		Running: tg.IsRunning(),
	}
}

// NewAsyncQueue creates a queue whose drain loop runs on this pool.
func (tg *GoroutineThreadPool) NewAsyncQueue(name string) *AsyncQueue {
	return core.NewAsyncQueue(&core.AsyncQueueConfig{
		Name:       name,
		ThreadPool: tg,
		Logger:     tg.logger,
	})
}

// =============================================================================
// Global Thread Pool Helper (Singleton)
// =============================================================================

var (
	globalThreadPool *GoroutineThreadPool
	globalMu         sync.Mutex
)

// InitGlobalThreadPool initializes the global thread pool with specified number of workers.
// It starts the pool immediately.
func InitGlobalThreadPool(workers int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		return // Already initialized
	}

	globalThreadPool = NewGoroutineThreadPool("global-pool", workers)
	globalThreadPool.Start(context.Background())
}

// GetGlobalThreadPool returns the global thread pool instance.
// It panics if InitGlobalThreadPool has not been called.
func GetGlobalThreadPool() *GoroutineThreadPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool == nil {
		panic("GlobalThreadPool not initialized. Call InitGlobalThreadPool() first.")
	}
	return globalThreadPool
}

// ShutdownGlobalThreadPool stops the global thread pool.
func ShutdownGlobalThreadPool() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		globalThreadPool.Stop()
		globalThreadPool = nil
	}
}

// CreateAsyncQueue creates a new AsyncQueue on the global thread pool.
func CreateAsyncQueue(name string) *AsyncQueue {
	return GetGlobalThreadPool().NewAsyncQueue(name)
}
