package queuetest

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Swind/go-async-queue/core"
)

// FakeClock is a core.Clock whose time only moves when Advance is called.
// Time and timer expiry come from a clockwork fake clock; FakeClock adds
// the bookkeeping that lets Advance wait for the callbacks it released.
type FakeClock struct {
	fc *clockwork.FakeClock

	mu     sync.Mutex
	timers map[*fakeTimer]struct{} // registered, not yet finished or stopped
}

var _ core.Clock = (*FakeClock)(nil)

type fakeTimer struct {
	clock    *FakeClock
	inner    clockwork.Timer
	deadline time.Time
	done     chan struct{}
	once     sync.Once
}

// NewFakeClock creates a clock reading start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{
		fc:     clockwork.NewFakeClockAt(start),
		timers: make(map[*fakeTimer]struct{}),
	}
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	return c.fc.Now()
}

// AfterFunc runs f on its own goroutine once the clock reaches now+d. As with
// time.AfterFunc, d <= 0 releases f right away.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) core.Timer {
	t := &fakeTimer{
		clock:    c,
		deadline: c.fc.Now().Add(d),
		done:     make(chan struct{}),
	}
	c.mu.Lock()
	c.timers[t] = struct{}{}
	c.mu.Unlock()

	t.inner = c.fc.AfterFunc(d, func() {
		defer t.finish()
		f()
	})
	return t
}

// Advance moves the clock forward by d and returns once every callback due
// at the new time has finished.
func (c *FakeClock) Advance(d time.Duration) {
	c.fc.Advance(d)
	now := c.fc.Now()

	c.mu.Lock()
	var due []*fakeTimer
	for t := range c.timers {
		if !t.deadline.After(now) {
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		<-t.done
	}
}

// PendingTimers returns the number of callbacks that have neither finished
// nor been stopped.
func (c *FakeClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (t *fakeTimer) Stop() bool {
	if !t.inner.Stop() {
		return false
	}
	t.finish()
	return true
}

func (t *fakeTimer) finish() {
	t.once.Do(func() {
		t.clock.mu.Lock()
		delete(t.clock.timers, t)
		t.clock.mu.Unlock()
		close(t.done)
	})
}
