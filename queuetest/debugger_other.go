//go:build !linux

package queuetest

import "github.com/Swind/go-async-queue/core"

// IsRunningUnderDebugger always reports false on this platform.
func IsRunningUnderDebugger() bool { return false }

// DebugThrowHandler is PanickingThrowHandler on this platform.
func DebugThrowHandler(kind core.ViolationKind, loc core.SourceLocation, message string) {
	PanickingThrowHandler(kind, loc, message)
}
