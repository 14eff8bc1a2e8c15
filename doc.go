// Package asyncqueue provides a serial executor for Go: an AsyncQueue runs
// submitted operations one at a time, in order, while any goroutine may
// submit work, schedule delayed work with cancelable handles, and tests may
// force delayed work to run early.
//
// State that is only touched from inside operations of one queue needs no
// locks. The queue enforces this with guard checks: a strict Enqueue from
// inside an operation of the same queue, or VerifyIsCurrentQueue from
// outside it, is a contract violation reported to the ThrowHandler (the
// default panics).
//
// # Quick Start
//
//	queue := asyncqueue.NewAsyncQueue(&asyncqueue.AsyncQueueConfig{Name: "client"})
//	defer queue.Stop()
//
//	queue.Enqueue(func() {
//		// Runs on the queue, after everything enqueued before it.
//		queue.EnqueueRelaxed(func() {
//			// Continuation, runs after the current operation.
//		})
//	})
//
//	idle := queue.EnqueueAfterDelay(time.Minute, asyncqueue.TimerIDListenStreamIdle, closeStream)
//	idle.Cancel()
//
// # Submission kinds
//
//   - Enqueue: strict, forbidden from inside the queue.
//   - EnqueueRelaxed: allowed from inside the queue.
//   - EnqueueBlocking / ExecuteBlocking: wait until the operation has run.
//   - EnqueueEvenWhileRestricted: still accepted after EnterRestrictedMode.
//   - EnqueueAfterDelay: delayed, tagged with a TimerID, cancelable.
//
// # Shutdown
//
// EnterRestrictedMode discards ordinary submissions so only cleanup work
// submitted with EnqueueEvenWhileRestricted runs. Stop discards everything,
// including pending delayed operations.
//
// # Shared pools
//
// By default each queue drains on its own goroutine. GoroutineThreadPool
// lets many queues share a fixed set of workers:
//
//	asyncqueue.InitGlobalThreadPool(4)
//	defer asyncqueue.ShutdownGlobalThreadPool()
//	queue := asyncqueue.CreateAsyncQueue("listener")
package asyncqueue
