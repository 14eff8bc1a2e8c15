package core

import (
	"fmt"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
)

// ViolationKind classifies a ContractViolation.
type ViolationKind int

const (
	// AssertionFailure: an internal invariant did not hold
	// (e.g. VerifyIsCurrentQueue from a foreign goroutine).
	AssertionFailure ViolationKind = iota

	// IllegalState: the call is not allowed in the current context
	// (e.g. a strict Enqueue from inside an operation of the same queue).
	IllegalState

	// InvalidArgument: the caller passed a value outside the contract.
	InvalidArgument
)

func (k ViolationKind) String() string {
	switch k {
	case AssertionFailure:
		return "assertion failure"
	case IllegalState:
		return "illegal state"
	case InvalidArgument:
		return "invalid argument"
	default:
		return fmt.Sprintf("violation(%d)", int(k))
	}
}

// SourceLocation identifies the call site that broke a contract.
type SourceLocation struct {
	File string
	Func string
	Line int
}

func (l SourceLocation) String() string {
	return fmt.Sprintf("%s:%d (%s)", filepath.Base(l.File), l.Line, l.Func)
}

// ContractViolation is a programmer error detected by one of the queue's
// guard checks. It is never returned as an ordinary error; the ThrowHandler
// decides what happens (the default panics with it).
type ContractViolation struct {
	Kind     ViolationKind
	Location SourceLocation
	Message  string
	Stack    []byte
}

func (v *ContractViolation) Error() string {
	return fmt.Sprintf("%s at %s: %s", v.Kind, v.Location, v.Message)
}

// ThrowHandler receives every contract violation.
type ThrowHandler func(kind ViolationKind, loc SourceLocation, message string)

var throwHandler struct {
	sync.RWMutex
	handler ThrowHandler
}

// SetThrowHandler installs h and returns the previous handler. A nil h
// restores DefaultThrowHandler.
func SetThrowHandler(h ThrowHandler) ThrowHandler {
	if h == nil {
		h = DefaultThrowHandler
	}
	throwHandler.Lock()
	defer throwHandler.Unlock()
	old := throwHandler.handler
	if old == nil {
		old = DefaultThrowHandler
	}
	throwHandler.handler = h
	return old
}

func currentThrowHandler() ThrowHandler {
	throwHandler.RLock()
	defer throwHandler.RUnlock()
	if throwHandler.handler != nil {
		return throwHandler.handler
	}
	return DefaultThrowHandler
}

// DefaultThrowHandler logs the violation and panics with a
// *ContractViolation. The drain loop re-panics such values, so a violation
// terminates the process unless the caller recovers it.
func DefaultThrowHandler(kind ViolationKind, loc SourceLocation, message string) {
	v := NewContractViolation(kind, loc, message)
	logger().Error("contract violation",
		F("kind", kind.String()),
		F("location", loc.String()),
		F("message", message),
	)
	panic(v)
}

// NewContractViolation builds a violation carrying the current stack.
func NewContractViolation(kind ViolationKind, loc SourceLocation, message string) *ContractViolation {
	return &ContractViolation{
		Kind:     kind,
		Location: loc,
		Message:  message,
		Stack:    debug.Stack(),
	}
}

// fail reports a violation attributed to the caller of the public method
// that detected it. skip counts frames above fail.
func fail(skip int, kind ViolationKind, format string, args ...any) {
	loc := SourceLocation{Func: "unknown"}
	if pc, file, line, ok := runtime.Caller(skip + 1); ok {
		loc.File = file
		loc.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			loc.Func = fn.Name()
		}
	}
	currentThrowHandler()(kind, loc, fmt.Sprintf(format, args...))
}
