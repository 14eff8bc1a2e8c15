// Package queuetest provides helpers for testing code that runs on an
// AsyncQueue: a manually advanced Clock, one-shot expectations, and throw
// handlers that turn contract violations into recoverable panics or
// debugger breaks.
package queuetest
