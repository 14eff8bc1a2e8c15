package queuetest

import (
	"testing"

	"github.com/Swind/go-async-queue/core"
)

// PanickingThrowHandler panics with a *core.ContractViolation without
// logging it, so tests can assert on violations with assert.Panics.
func PanickingThrowHandler(kind core.ViolationKind, loc core.SourceLocation, message string) {
	panic(core.NewContractViolation(kind, loc, message))
}

// RestoreThrowHandler installs h for the duration of t and restores the
// previous handler during cleanup.
func RestoreThrowHandler(t testing.TB, h core.ThrowHandler) {
	t.Helper()
	old := core.SetThrowHandler(h)
	t.Cleanup(func() { core.SetThrowHandler(old) })
}

// RecordingThrowHandler collects violations instead of panicking. The
// guarded call then returns without doing anything.
type RecordingThrowHandler struct {
	violations chan *core.ContractViolation
}

// NewRecordingThrowHandler buffers up to capacity violations.
func NewRecordingThrowHandler(capacity int) *RecordingThrowHandler {
	return &RecordingThrowHandler{violations: make(chan *core.ContractViolation, capacity)}
}

// Handle is the core.ThrowHandler.
func (r *RecordingThrowHandler) Handle(kind core.ViolationKind, loc core.SourceLocation, message string) {
	select {
	case r.violations <- &core.ContractViolation{Kind: kind, Location: loc, Message: message}:
	default:
	}
}

// Violations returns the channel violations are delivered on.
func (r *RecordingThrowHandler) Violations() <-chan *core.ContractViolation {
	return r.violations
}
