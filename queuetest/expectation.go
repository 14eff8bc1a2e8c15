package queuetest

import (
	"sync"
	"testing"
	"time"
)

// DefaultTimeout bounds Await.
const DefaultTimeout = 5 * time.Second

// Expectation is a one-shot signal a test waits on. Fulfilling it more than
// once is harmless.
type Expectation struct {
	once sync.Once
	done chan struct{}
}

// NewExpectation creates an unfulfilled expectation.
func NewExpectation() *Expectation {
	return &Expectation{done: make(chan struct{})}
}

// Fulfill marks the expectation met.
func (e *Expectation) Fulfill() {
	e.once.Do(func() { close(e.done) })
}

// AsCallback returns a func that fulfills e, convenient as an operation.
func (e *Expectation) AsCallback() func() {
	return e.Fulfill
}

// Done is closed once the expectation is fulfilled.
func (e *Expectation) Done() <-chan struct{} {
	return e.done
}

// IsFulfilled reports whether Fulfill was called.
func (e *Expectation) IsFulfilled() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Await fails t unless e is fulfilled within DefaultTimeout.
func (e *Expectation) Await(t testing.TB) {
	t.Helper()
	e.AwaitWithin(t, DefaultTimeout)
}

// AwaitWithin fails t unless e is fulfilled within timeout.
func (e *Expectation) AwaitWithin(t testing.TB, timeout time.Duration) {
	t.Helper()
	select {
	case <-e.done:
	case <-time.After(timeout):
		t.Fatalf("expectation not fulfilled within %v", timeout)
	}
}
