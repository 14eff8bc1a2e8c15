package core

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// =============================================================================
// Retry Policy
// =============================================================================

// RetryPolicy defines the delays between reconnect attempts.
type RetryPolicy struct {
	// MaxRetries is the maximum number of scheduled attempts (0 = unlimited).
	MaxRetries int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// BackoffRatio is the multiplier for delay after each retry (e.g., 2.0 for exponential)
	// For example, with InitialDelay=100ms and BackoffRatio=2.0:
	// - Retry 1 delay: 100ms
	// - Retry 2 delay: 200ms
	// - Retry 3 delay: 400ms (capped by MaxDelay)
	BackoffRatio float64

	// JitterFactor randomizes each delay by up to +/- JitterFactor/2 of it.
	JitterFactor float64
}

// DefaultRetryPolicy returns the policy used for stream reconnects.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		BackoffRatio: 1.5,
		JitterFactor: 0.5,
	}
}

// Validate checks the policy for values that cannot produce a schedule.
func (p RetryPolicy) Validate() error {
	switch {
	case p.MaxRetries < 0:
		return fmt.Errorf("%w: negative MaxRetries %d", ErrInvalidRetryPolicy, p.MaxRetries)
	case p.InitialDelay < 0 || p.MaxDelay < 0:
		return fmt.Errorf("%w: negative delay", ErrInvalidRetryPolicy)
	case p.MaxDelay < p.InitialDelay:
		return fmt.Errorf("%w: MaxDelay %v below InitialDelay %v", ErrInvalidRetryPolicy, p.MaxDelay, p.InitialDelay)
	case p.BackoffRatio < 1:
		return fmt.Errorf("%w: BackoffRatio %v below 1", ErrInvalidRetryPolicy, p.BackoffRatio)
	case p.JitterFactor < 0 || p.JitterFactor > 1:
		return fmt.Errorf("%w: JitterFactor %v outside [0, 1]", ErrInvalidRetryPolicy, p.JitterFactor)
	}
	return nil
}

// =============================================================================
// ExponentialBackoff
// =============================================================================

// ExponentialBackoff schedules retries of an operation on an AsyncQueue with
// growing delays. Every method must be called from an operation of the queue.
//
// The first attempt after creation or Reset runs without delay; each later
// attempt waits the current base delay (+/- jitter), minus the time already
// elapsed since the previous attempt started. The delay sequence itself comes
// from a cenkalti/backoff ExponentialBackOff.
type ExponentialBackoff struct {
	queue    *AsyncQueue
	timerID  TimerID
	policy   RetryPolicy
	schedule *backoff.ExponentialBackOff

	immediate       bool
	currentBase     time.Duration
	attempts        int
	lastAttemptTime time.Time
	pending         DelayedOperation
}

// NewExponentialBackoff creates a backoff whose attempts are tagged timerID.
func NewExponentialBackoff(queue *AsyncQueue, timerID TimerID, policy RetryPolicy) (*ExponentialBackoff, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = policy.InitialDelay
	schedule.MaxInterval = policy.MaxDelay
	schedule.Multiplier = policy.BackoffRatio
	schedule.RandomizationFactor = policy.JitterFactor / 2
	schedule.MaxElapsedTime = 0
	schedule.Reset()

	return &ExponentialBackoff{
		queue:           queue,
		timerID:         timerID,
		policy:          policy,
		schedule:        schedule,
		immediate:       true,
		lastAttemptTime: queue.clock.Now(),
	}, nil
}

// BackoffAndRun cancels any pending attempt and schedules op after the
// current backoff delay. It returns false if MaxRetries attempts were
// already scheduled since the last Reset.
func (b *ExponentialBackoff) BackoffAndRun(op Operation) bool {
	b.queue.VerifyIsCurrentQueue()
	b.Cancel()

	if b.policy.MaxRetries > 0 && b.attempts >= b.policy.MaxRetries {
		return false
	}

	var desired time.Duration
	if b.immediate {
		b.immediate = false
		b.currentBase = b.policy.InitialDelay
	} else {
		desired = b.schedule.NextBackOff()
		b.currentBase = min(time.Duration(float64(b.currentBase)*b.policy.BackoffRatio), b.policy.MaxDelay)
	}
	elapsed := b.queue.clock.Now().Sub(b.lastAttemptTime)
	remaining := max(desired-elapsed, 0)

	if desired > 0 {
		b.queue.logger.Debug("backing off",
			F("queue", b.queue.name),
			F("timer_id", b.timerID.String()),
			F("delay", remaining),
			F("elapsed", elapsed),
		)
	}

	b.pending = b.queue.EnqueueAfterDelay(remaining, b.timerID, func() {
		b.lastAttemptTime = b.queue.clock.Now()
		op()
	})
	b.attempts++
	return true
}

// Reset makes the next BackoffAndRun run immediately and restarts the delay
// sequence from InitialDelay.
func (b *ExponentialBackoff) Reset() {
	b.immediate = true
	b.currentBase = 0
	b.attempts = 0
	b.schedule.Reset()
}

// ResetToMax makes the next attempt wait MaxDelay. Used after errors such as
// resource exhaustion where retrying quickly would make things worse.
func (b *ExponentialBackoff) ResetToMax() {
	b.immediate = false
	b.currentBase = b.policy.MaxDelay
	b.schedule.InitialInterval = b.policy.MaxDelay
	b.schedule.Reset()
	b.schedule.InitialInterval = b.policy.InitialDelay
}

// Cancel drops the pending attempt, if any.
func (b *ExponentialBackoff) Cancel() {
	b.pending.Cancel()
	b.pending = DelayedOperation{}
}

// CurrentDelay returns the base delay the next attempt will use.
func (b *ExponentialBackoff) CurrentDelay() time.Duration { return b.currentBase }

// Attempts returns the number of attempts scheduled since the last Reset.
func (b *ExponentialBackoff) Attempts() int { return b.attempts }
