package core

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoroutineID_DistinctPerGoroutine(t *testing.T) {
	self := goroutineID()
	assert.NotZero(t, self)
	assert.Equal(t, self, goroutineID())

	var other uint64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		other = goroutineID()
	}()
	wg.Wait()

	assert.NotZero(t, other)
	assert.NotEqual(t, self, other)
}

// TestExecuteBlocking_RunsInlineWhenIdle verifies the inline fast path
// Given: an idle queue
// When: ExecuteBlocking is called
// Then: the operation runs on the calling goroutine and the slot is released
func TestExecuteBlocking_RunsInlineWhenIdle(t *testing.T) {
	q := NewAsyncQueue(&AsyncQueueConfig{Logger: NewNoOpLogger()})
	defer q.Stop()

	caller := goroutineID()
	var inner uint64
	q.ExecuteBlocking(func() { inner = goroutineID() })

	assert.Equal(t, caller, inner)
	q.mu.Lock()
	assert.False(t, q.isRunning)
	q.mu.Unlock()
	assert.Zero(t, q.operatingGoroutine.Load())
}

// recordingPool runs nothing until drained, so tests can observe how many
// drain loops a queue posts.
type recordingPool struct {
	mu    sync.Mutex
	tasks []func()
}

func (p *recordingPool) PostInternal(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
	return nil
}

func (p *recordingPool) take() []func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	tasks := p.tasks
	p.tasks = nil
	return tasks
}

// TestAsyncQueue_PostsOneDrainLoopPerBusyPeriod verifies the worker slot
// Given: a pool that holds posted work
// When: several operations are enqueued before the loop runs
// Then: exactly one drain loop is posted, and a new one only after it ends
func TestAsyncQueue_PostsOneDrainLoopPerBusyPeriod(t *testing.T) {
	pool := &recordingPool{}
	q := NewAsyncQueue(&AsyncQueueConfig{ThreadPool: pool, Logger: NewNoOpLogger()})
	defer q.Stop()

	var order []int
	for i := range 3 {
		q.Enqueue(func() { order = append(order, i) })
	}

	loops := pool.take()
	assert.Len(t, loops, 1)
	loops[0]()
	assert.Equal(t, []int{0, 1, 2}, order)

	q.Enqueue(func() { order = append(order, 3) })
	loops = pool.take()
	assert.Len(t, loops, 1)
	loops[0]()
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

// TestCancelDelayed_WinnerDecidesWhetherOperationRuns verifies that a cancel
// that removed the entry always prevents the run, and a cancel that lost
// leaves exactly one run.
func TestCancelDelayed_WinnerDecidesWhetherOperationRuns(t *testing.T) {
	q := NewAsyncQueue(&AsyncQueueConfig{Logger: NewNoOpLogger()})
	defer q.Stop()

	for range 200 {
		var runs atomic.Int32
		handle := q.EnqueueAfterDelay(0, TimerIDOnlineStateTimeout, func() { runs.Add(1) })

		cancelled := q.cancelDelayed(handle.entry)
		q.EnqueueBlocking(func() {})

		if cancelled {
			assert.Equal(t, int32(0), runs.Load())
		} else {
			assert.Equal(t, int32(1), runs.Load())
		}
		assert.False(t, q.cancelDelayed(handle.entry), "second cancel never wins")
	}
}

// TestRunLoop_SecondRunnerIsAssertionFailure verifies that a drain loop
// started while another holds the worker slot is reported as a contract
// violation rather than a plain panic.
func TestRunLoop_SecondRunnerIsAssertionFailure(t *testing.T) {
	var got []*ContractViolation
	prev := SetThrowHandler(func(kind ViolationKind, loc SourceLocation, message string) {
		got = append(got, NewContractViolation(kind, loc, message))
	})
	t.Cleanup(func() { SetThrowHandler(prev) })

	q := NewAsyncQueue(&AsyncQueueConfig{Name: "guarded", Logger: NewNoOpLogger()})
	defer q.Stop()

	atomic.StoreInt32(&q.activeRunners, 1)
	q.runLoop()
	q.runInline(readyItem{op: func() { t.Error("ran while the slot was held") }, kind: submitOrdinary.String()})
	atomic.StoreInt32(&q.activeRunners, 0)

	require.Len(t, got, 2)
	for _, v := range got {
		assert.Equal(t, AssertionFailure, v.Kind)
		assert.Contains(t, v.Message, `"guarded"`)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&q.activeRunners))
}
