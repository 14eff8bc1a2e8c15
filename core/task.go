package core

import (
	"fmt"
	"time"
)

// Operation is the unit of work (Closure) executed by an AsyncQueue.
type Operation func()

// =============================================================================
// TimerID: identity attached to delayed operations
// =============================================================================

// TimerID tags a delayed operation so tests can select it and callers can
// ask whether one is already pending. It carries no priority.
type TimerID int

const (
	// TimerIDAll is the sentinel accepted by RunScheduledOperationsUntil
	// meaning "every pending delayed operation".
	TimerIDAll TimerID = iota

	// TimerIDListenStreamIdle: the listen stream is closed after a period of
	// inactivity.
	TimerIDListenStreamIdle

	// TimerIDListenStreamConnectionBackoff: reconnect attempts of the listen
	// stream.
	TimerIDListenStreamConnectionBackoff

	// TimerIDWriteStreamIdle: the write stream is closed after a period of
	// inactivity.
	TimerIDWriteStreamIdle

	// TimerIDWriteStreamConnectionBackoff: reconnect attempts of the write
	// stream.
	TimerIDWriteStreamConnectionBackoff

	// TimerIDOnlineStateTimeout: deadline for the first successful connection
	// before the client reports itself offline.
	TimerIDOnlineStateTimeout
)

var timerIDNames = map[TimerID]string{
	TimerIDAll:                           "all",
	TimerIDListenStreamIdle:              "listen_stream_idle",
	TimerIDListenStreamConnectionBackoff: "listen_stream_connection_backoff",
	TimerIDWriteStreamIdle:               "write_stream_idle",
	TimerIDWriteStreamConnectionBackoff:  "write_stream_connection_backoff",
	TimerIDOnlineStateTimeout:            "online_state_timeout",
}

func (id TimerID) String() string {
	if name, ok := timerIDNames[id]; ok {
		return name
	}
	return fmt.Sprintf("timer_id(%d)", int(id))
}

// ParseTimerID returns the TimerID whose String() is name.
func ParseTimerID(name string) (TimerID, error) {
	for id, n := range timerIDNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTimerID, name)
}

// =============================================================================
// QueueState: lifecycle of an AsyncQueue
// =============================================================================

// QueueState only moves forward: Running -> Restricted -> Stopped, or
// Running -> Stopped.
type QueueState int32

const (
	// StateRunning accepts every kind of submission.
	StateRunning QueueState = iota

	// StateRestricted accepts only exempt submissions
	// (EnqueueEvenWhileRestricted); everything else is discarded.
	StateRestricted

	// StateStopped discards every submission and runs no further work.
	StateStopped
)

func (s QueueState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateRestricted:
		return "restricted"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// submissionKind distinguishes ordinary submissions from the ones that
// survive restricted mode.
type submissionKind int

const (
	submitOrdinary submissionKind = iota
	submitExempt
)

func (k submissionKind) String() string {
	if k == submitExempt {
		return "exempt"
	}
	return "ordinary"
}

// accepts reports whether a submission of kind k may enter the queue
// in state s.
func (s QueueState) accepts(k submissionKind) bool {
	switch s {
	case StateRunning:
		return true
	case StateRestricted:
		return k == submitExempt
	default:
		return false
	}
}

// =============================================================================
// Clock: the platform timer primitive
// =============================================================================

// Timer is a pending callback created by Clock.AfterFunc.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback already fired or the timer was already stopped.
	Stop() bool
}

// Clock provides the current time and runs callbacks after a duration on
// some goroutine. The delayed-operation subsystem is built on top of it.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// RealClock returns the Clock backed by package time.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
