package core

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// AsyncQueue executes operations one at a time, in order, on a single
// logical worker while any goroutine may submit work concurrently.
//
// State that is only touched from inside operations of one queue needs no
// further locking: at most one operation of a queue runs at any moment.
//
// Ordering:
//   - ready operations run in submission order;
//   - delayed operations run in deadline order (ties by scheduling order);
//   - work a running operation submits with EnqueueRelaxed runs after the
//     work already queued ahead of it.
type AsyncQueue struct {
	id              string
	name            string
	pool            ThreadPool
	clock           Clock
	logger          Logger
	panicHandler    PanicHandler
	metrics         Metrics
	rejectedHandler RejectedOperationHandler
	history         *executionHistory

	mu        sync.Mutex
	state     QueueState
	ready     *operationQueue
	delayed   delaySchedule
	isRunning bool // a drain loop or an inline ExecuteBlocking owns the worker slot

	// operatingGoroutine holds the id of the goroutine currently executing
	// an operation of this queue, 0 when none is.
	operatingGoroutine atomic.Uint64
	activeRunners      int32 // atomic guard for concurrency assertion

	rejected atomic.Int64
	executed atomic.Int64
	seq      atomic.Uint64
}

// NewAsyncQueue creates a queue in StateRunning. cfg may be nil.
func NewAsyncQueue(cfg *AsyncQueueConfig) *AsyncQueue {
	c := cfg.withDefaults()
	return &AsyncQueue{
		id:              uuid.NewString(),
		name:            c.Name,
		pool:            c.ThreadPool,
		clock:           c.Clock,
		logger:          c.Logger,
		panicHandler:    c.PanicHandler,
		metrics:         c.Metrics,
		rejectedHandler: c.RejectedOperationHandler,
		history:         newExecutionHistory(c.HistoryCapacity),
		ready:           newOperationQueue(),
		delayed:         newDelaySchedule(),
	}
}

// ID returns the unique id assigned at construction.
func (q *AsyncQueue) ID() string { return q.id }

// Name returns the configured name.
func (q *AsyncQueue) Name() string { return q.name }

// =============================================================================
// Submission
// =============================================================================

// Enqueue schedules op to run after all previously enqueued operations.
//
// Calling Enqueue from inside an operation of the same queue is a contract
// violation: such code usually assumes op runs right away. Use
// EnqueueRelaxed to schedule continuations.
func (q *AsyncQueue) Enqueue(op Operation) {
	if !q.verifySequentialOrder("Enqueue") || !q.verifyOperation(op) {
		return
	}
	q.enqueue(readyItem{op: op, kind: submitOrdinary.String()}, submitOrdinary)
}

// EnqueueRelaxed is Enqueue without the reentrancy check; it may be called
// from inside an operation of the same queue.
func (q *AsyncQueue) EnqueueRelaxed(op Operation) {
	if !q.verifyOperation(op) {
		return
	}
	q.enqueue(readyItem{op: op, kind: submitOrdinary.String()}, submitOrdinary)
}

// EnqueueEvenWhileRestricted is EnqueueRelaxed that is still accepted after
// EnterRestrictedMode. It is meant for cleanup work during shutdown.
func (q *AsyncQueue) EnqueueEvenWhileRestricted(op Operation) {
	if !q.verifyOperation(op) {
		return
	}
	q.enqueue(readyItem{op: op, kind: submitExempt.String()}, submitExempt)
}

// EnqueueBlocking enqueues op like Enqueue and waits until it has run. It
// returns immediately if the queue discarded op.
func (q *AsyncQueue) EnqueueBlocking(op Operation) {
	if !q.verifySequentialOrder("EnqueueBlocking") || !q.verifyOperation(op) {
		return
	}
	q.enqueueAndWait(op, submitOrdinary)
}

// ExecuteBlocking runs op under the queue's serialization and returns once
// it has finished. When the queue is idle op runs inline on the calling
// goroutine; otherwise it is enqueued and the caller waits.
func (q *AsyncQueue) ExecuteBlocking(op Operation) {
	if !q.verifySequentialOrder("ExecuteBlocking") || !q.verifyOperation(op) {
		return
	}
	q.executeBlocking(op, submitOrdinary)
}

// VerifyIsCurrentQueue reports a contract violation unless the caller is
// executing an operation of this queue.
func (q *AsyncQueue) VerifyIsCurrentQueue() {
	if !q.IsCurrentQueue() {
		fail(1, AssertionFailure,
			"expected to be called by the queue %q, but no operation of it is running on this goroutine", q.name)
	}
}

// IsCurrentQueue reports whether the calling goroutine is executing an
// operation of this queue.
func (q *AsyncQueue) IsCurrentQueue() bool {
	id := q.operatingGoroutine.Load()
	return id != 0 && id == goroutineID()
}

func (q *AsyncQueue) verifySequentialOrder(method string) bool {
	if q.IsCurrentQueue() {
		fail(2, IllegalState,
			"%s called while already running on the queue %q; use EnqueueRelaxed to schedule continuations", method, q.name)
		return false
	}
	return true
}

func (q *AsyncQueue) verifyOperation(op Operation) bool {
	if op == nil {
		fail(2, InvalidArgument, "nil operation submitted to the queue %q", q.name)
		return false
	}
	return true
}

// enqueue appends item to the ready FIFO unless the state forbids kind.
func (q *AsyncQueue) enqueue(item readyItem, kind submissionKind) bool {
	q.mu.Lock()
	if !q.state.accepts(kind) {
		state := q.state
		q.mu.Unlock()
		q.reject(state)
		return false
	}
	q.ready.Push(item)
	depth := q.ready.Len()
	start := q.claimWorkerLocked()
	q.mu.Unlock()

	q.metrics.RecordQueueDepth(q.name, depth)
	if start {
		q.startLoop()
	}
	return true
}

func (q *AsyncQueue) enqueueAndWait(op Operation, kind submissionKind) {
	done := make(chan struct{})
	var once sync.Once
	release := func() { once.Do(func() { close(done) }) }

	item := readyItem{
		op:         op,
		kind:       kind.String(),
		onComplete: release,
		onDiscard:  release,
	}
	if !q.enqueue(item, kind) {
		return
	}
	<-done
}

func (q *AsyncQueue) executeBlocking(op Operation, kind submissionKind) {
	q.mu.Lock()
	if !q.state.accepts(kind) {
		state := q.state
		q.mu.Unlock()
		q.reject(state)
		return
	}
	if !q.isRunning && q.ready.IsEmpty() {
		q.isRunning = true
		q.mu.Unlock()
		q.runInline(readyItem{op: op, kind: kind.String()})
		return
	}
	q.mu.Unlock()

	q.enqueueAndWait(op, kind)
}

func (q *AsyncQueue) reject(state QueueState) {
	reason := state.String()
	q.rejected.Add(1)
	q.rejectedHandler.HandleRejectedOperation(q.name, reason)
	q.metrics.RecordOperationRejected(q.name, reason)
}

// =============================================================================
// Execution
// =============================================================================

// claimWorkerLocked marks the worker slot taken and reports whether the
// caller must start a drain loop.
func (q *AsyncQueue) claimWorkerLocked() bool {
	if q.isRunning {
		return false
	}
	q.isRunning = true
	return true
}

// startLoop posts the drain loop for a slot claimed with claimWorkerLocked.
// A pool that refuses the loop leaves the queue without a worker, so the
// queue stops, which releases every blocked submitter.
func (q *AsyncQueue) startLoop() {
	err := q.pool.PostInternal(q.runLoop)
	if err == nil {
		return
	}
	q.mu.Lock()
	q.isRunning = false
	q.mu.Unlock()
	q.logger.Error("thread pool refused the drain loop, stopping queue",
		F("queue", q.name),
		F("error", err),
	)
	q.Stop()
}

// runLoop drains the ready FIFO to empty, one operation at a time. At most
// one runLoop or inline execution may hold the worker slot; a second one is
// reported as an AssertionFailure.
func (q *AsyncQueue) runLoop() {
	if n := atomic.AddInt32(&q.activeRunners, 1); n > 1 {
		atomic.AddInt32(&q.activeRunners, -1)
		fail(0, AssertionFailure, "concurrent drain loops on the queue %q (count=%d)", q.name, n)
		return
	}

	for {
		q.mu.Lock()
		item, ok := q.ready.Pop()
		if !ok {
			atomic.AddInt32(&q.activeRunners, -1)
			q.isRunning = false
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()

		q.runOperation(item)
	}
}

// runInline executes item on the calling goroutine while it holds the
// worker slot, then hands the slot to a drain loop if work arrived meanwhile.
func (q *AsyncQueue) runInline(item readyItem) {
	if n := atomic.AddInt32(&q.activeRunners, 1); n > 1 {
		atomic.AddInt32(&q.activeRunners, -1)
		fail(0, AssertionFailure, "inline execution while the queue %q is draining (count=%d)", q.name, n)
		return
	}
	defer func() {
		q.mu.Lock()
		atomic.AddInt32(&q.activeRunners, -1)
		more := !q.ready.IsEmpty()
		if !more {
			q.isRunning = false
		}
		q.mu.Unlock()
		if more {
			q.startLoop()
		}
	}()

	q.runOperation(item)
}

// runOperation executes one operation with the current-queue marker set.
// Nested calls (a drained delayed operation inside RunScheduledOperationsUntil)
// restore the outer marker on exit.
func (q *AsyncQueue) runOperation(item readyItem) {
	prev := q.operatingGoroutine.Swap(goroutineID())
	seq := q.seq.Add(1)
	startedAt := time.Now()
	panicked := false

	defer func() {
		rec := recover()
		q.operatingGoroutine.Store(prev)

		finishedAt := time.Now()
		if rec != nil {
			panicked = true
		}
		q.executed.Add(1)
		q.history.Add(OperationExecutionRecord{
			Seq:        seq,
			Name:       operationName(item.op),
			QueueName:  q.name,
			Kind:       item.kind,
			TimerID:    item.timerID,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
			Duration:   finishedAt.Sub(startedAt),
			Panicked:   panicked,
		})
		q.metrics.RecordOperationDuration(q.name, item.kind, finishedAt.Sub(startedAt))
		if item.onComplete != nil {
			item.onComplete()
		}

		if rec == nil {
			return
		}
		if v, ok := rec.(*ContractViolation); ok {
			panic(v)
		}
		q.metrics.RecordOperationPanic(q.name, rec)
		q.panicHandler.HandlePanic(q.name, rec, debug.Stack())
	}()

	item.op()
}

// =============================================================================
// Delayed operations
// =============================================================================

// EnqueueAfterDelay schedules op to be enqueued once delay has elapsed and
// returns a handle that can cancel it. The handle is inert if the queue is
// restricted or stopped.
func (q *AsyncQueue) EnqueueAfterDelay(delay time.Duration, timerID TimerID, op Operation) DelayedOperation {
	if delay < 0 {
		fail(1, InvalidArgument, "negative delay %v for timer %s", delay, timerID)
		return DelayedOperation{}
	}
	if !q.verifyOperation(op) {
		return DelayedOperation{}
	}

	q.mu.Lock()
	if !q.state.accepts(submitOrdinary) {
		state := q.state
		q.mu.Unlock()
		q.reject(state)
		return DelayedOperation{}
	}
	entry := q.delayed.add(q.clock.Now().Add(delay), timerID, op)
	q.mu.Unlock()

	// Arm outside the lock: a Clock may run the callback synchronously.
	timer := q.clock.AfterFunc(delay, func() { q.fireDue(entry) })

	q.mu.Lock()
	live := entry.live()
	if live {
		entry.timer = timer
	}
	q.mu.Unlock()
	if !live {
		timer.Stop()
	}

	q.logger.Debug("delayed operation scheduled",
		F("queue", q.name),
		F("timer_id", timerID.String()),
		F("delay", delay),
	)
	return DelayedOperation{queue: q, entry: entry}
}

// fireDue moves every due delayed operation to the ready FIFO. trigger is the
// entry whose timer expired; it counts as due even if the clock disagrees.
func (q *AsyncQueue) fireDue(trigger *delayedEntry) {
	now := q.clock.Now()
	if now.Before(trigger.deadline) {
		now = trigger.deadline
	}

	q.mu.Lock()
	if q.state == StateStopped {
		q.mu.Unlock()
		return
	}
	due := q.delayed.popDue(now)
	q.pushFiredLocked(due)
	depth := q.ready.Len()
	start := len(due) > 0 && q.claimWorkerLocked()
	q.mu.Unlock()

	q.recordFired(due, trigger, depth)
	if start {
		q.startLoop()
	}
}

// pushFiredLocked appends fired entries to the ready FIFO in the order given.
func (q *AsyncQueue) pushFiredLocked(due []*delayedEntry) {
	for _, e := range due {
		q.ready.Push(readyItem{op: e.op, kind: delayedKind, timerID: e.timerID})
	}
}

// recordFired stops the timers of fired entries, except the one that
// triggered the firing, and reports them.
func (q *AsyncQueue) recordFired(due []*delayedEntry, trigger *delayedEntry, depth int) {
	if len(due) == 0 {
		return
	}
	for _, e := range due {
		if e != trigger && e.timer != nil {
			e.timer.Stop()
		}
		q.metrics.RecordDelayedOperationFired(q.name, e.timerID)
	}
	q.metrics.RecordQueueDepth(q.name, depth)
}

// cancelDelayed removes entry if it has not fired yet and reports whether it
// did.
func (q *AsyncQueue) cancelDelayed(entry *delayedEntry) bool {
	q.mu.Lock()
	removed := q.delayed.remove(entry)
	timer := entry.timer
	q.mu.Unlock()

	if !removed {
		return false
	}
	if timer != nil {
		timer.Stop()
	}
	q.logger.Debug("delayed operation cancelled",
		F("queue", q.name),
		F("timer_id", entry.timerID.String()),
	)
	return true
}

// IsScheduled reports whether a delayed operation tagged timerID is still
// waiting to fire. TimerIDAll matches any pending operation.
func (q *AsyncQueue) IsScheduled(timerID TimerID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.delayed.contains(timerID)
}

// DelayedOperationCount returns the number of delayed operations waiting to fire.
func (q *AsyncQueue) DelayedOperationCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.delayed.Len()
}

// RunScheduledOperationsUntil fires pending delayed operations right away,
// in deadline order, up to and including the first one tagged lastTimerID
// (every one of them for TimerIDAll), and blocks until they have run. They
// go through the ready FIFO like operations fired by their timers, behind
// any delayed operation that already fired. It must not be called from the
// queue. Intended for tests.
//
// The tag is looked up once the queue reaches this call: a tag that is
// neither pending nor fired and waiting to run is a contract violation.
func (q *AsyncQueue) RunScheduledOperationsUntil(lastTimerID TimerID) {
	if q.IsCurrentQueue() {
		fail(1, IllegalState, "RunScheduledOperationsUntil called from inside the queue %q", q.name)
		return
	}

	var missing bool
	var reached <-chan struct{}
	q.executeBlocking(func() {
		missing, reached = q.fireThrough(lastTimerID)
	}, submitExempt)

	if missing {
		fail(1, InvalidArgument, "attempted to run scheduled operations until missing timer id %s", lastTimerID)
		return
	}
	if reached != nil {
		<-reached
	}
}

// fireThrough runs on the queue. It moves pending entries up to lastTimerID
// into the ready FIFO and returns a channel closed once the target has run
// or was discarded. A target that already fired is waited for in place.
func (q *AsyncQueue) fireThrough(lastTimerID TimerID) (missing bool, reached <-chan struct{}) {
	q.mu.Lock()
	if q.state == StateStopped {
		q.mu.Unlock()
		return false, nil
	}

	var due []*delayedEntry
	if lastTimerID == TimerIDAll || q.ready.indexOfDelayed(lastTimerID) < 0 {
		if !q.delayed.contains(lastTimerID) && lastTimerID != TimerIDAll {
			q.mu.Unlock()
			return true, nil
		}
		due = q.delayed.popThrough(lastTimerID)
		q.pushFiredLocked(due)
	}

	target := q.ready.indexOfDelayed(lastTimerID)
	if target < 0 {
		q.mu.Unlock()
		return false, nil
	}
	done := make(chan struct{})
	var once sync.Once
	q.ready.notifyAt(target, func() { once.Do(func() { close(done) }) })
	depth := q.ready.Len()
	q.mu.Unlock()

	q.recordFired(due, nil, depth)
	return false, done
}

// =============================================================================
// Restricted mode and shutdown
// =============================================================================

// EnterRestrictedMode makes the queue discard every submission except
// EnqueueEvenWhileRestricted. It has no effect unless the queue is running.
func (q *AsyncQueue) EnterRestrictedMode() {
	q.mu.Lock()
	if q.state != StateRunning {
		q.mu.Unlock()
		return
	}
	q.state = StateRestricted
	q.mu.Unlock()

	q.logger.Info("queue entered restricted mode", F("queue", q.name))
}

// Stop discards all pending work, ready and delayed, and every later
// submission. An operation that is running when Stop is called completes.
// Stop is idempotent.
func (q *AsyncQueue) Stop() {
	q.mu.Lock()
	if q.state == StateStopped {
		q.mu.Unlock()
		return
	}
	q.state = StateStopped
	discarded := q.ready.Clear()
	abandoned := q.delayed.clear()
	q.mu.Unlock()

	for _, e := range abandoned {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	for _, item := range discarded {
		if item.onDiscard != nil {
			item.onDiscard()
		}
	}
	q.metrics.RecordQueueDepth(q.name, 0)
	q.logger.Info("queue stopped",
		F("queue", q.name),
		F("discarded", len(discarded)),
		F("abandoned_delayed", len(abandoned)),
	)
}

// State returns the current lifecycle state.
func (q *AsyncQueue) State() QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// IsStopped returns true once Stop has been called.
func (q *AsyncQueue) IsStopped() bool {
	return q.State() == StateStopped
}

// =============================================================================
// Observability
// =============================================================================

// PendingOperationCount returns the number of ready operations not yet started.
func (q *AsyncQueue) PendingOperationCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ready.Len()
}

// RecentOperations returns up to limit execution records, newest first.
func (q *AsyncQueue) RecentOperations(limit int) []OperationExecutionRecord {
	return q.history.Recent(limit)
}

// Stats returns a snapshot of the queue.
func (q *AsyncQueue) Stats() QueueStats {
	q.mu.Lock()
	stats := QueueStats{
		ID:       q.id,
		Name:     q.name,
		State:    q.state,
		Pending:  q.ready.Len(),
		Delayed:  q.delayed.Len(),
		Running:  q.operatingGoroutine.Load() != 0,
		Rejected: q.rejected.Load(),
		Executed: q.executed.Load(),
	}
	q.mu.Unlock()

	if last, ok := q.history.Last(); ok {
		stats.LastOperation = last.Name
		stats.LastOperationAt = last.FinishedAt
	}
	return stats
}
