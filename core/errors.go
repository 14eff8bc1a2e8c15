package core

import "errors"

var (
	// ErrUnknownTimerID is returned by ParseTimerID for names it does not know.
	ErrUnknownTimerID = errors.New("unknown timer id")

	// ErrPoolNotRunning is returned when work is handed to a stopped pool.
	ErrPoolNotRunning = errors.New("thread pool is not running")

	// ErrInvalidRetryPolicy is returned by RetryPolicy.Validate.
	ErrInvalidRetryPolicy = errors.New("invalid retry policy")
)
