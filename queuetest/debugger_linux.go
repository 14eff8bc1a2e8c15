//go:build linux

package queuetest

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/Swind/go-async-queue/core"
)

// IsRunningUnderDebugger reports whether a tracer is attached to the
// process, according to the TracerPid line of /proc/self/status.
func IsRunningUnderDebugger() bool {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		value, ok := strings.CutPrefix(scanner.Text(), "TracerPid:")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(value))
		return err == nil && pid != 0
	}
	return false
}

// DebugThrowHandler stops in an attached debugger before panicking like
// PanickingThrowHandler. Without a debugger it only panics.
func DebugThrowHandler(kind core.ViolationKind, loc core.SourceLocation, message string) {
	if IsRunningUnderDebugger() {
		_ = unix.Kill(os.Getpid(), unix.SIGTRAP)
	}
	PanickingThrowHandler(kind, loc, message)
}
