//go:build windows

package barrier

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/maihd/csfx/pkg/abi"
)

// Windows has no os/signal equivalent for synchronous hardware exceptions —
// the original implementation installs a vectored/unhandled exception
// filter via SetUnhandledExceptionFilter and longjmps out of it, which
// requires either cgo or hand-written assembly to reproduce faithfully.
// Lacking both here (purego itself is unix-only; this module stays
// cgo-free to match it), this backend only catches faults the Go runtime
// itself can turn into a recoverable panic: debug.SetPanicOnFault
// converts an unexpected-address fault encountered while *Go* code is
// running into a runtime.Error instead of a fatal crash. It does not
// catch an exception raised purely inside the native plug-in's own
// machine code — that limitation is inherent to staying cgo-free on this
// platform and is called out in DESIGN.md.
func InstallHandlers() error {
	installMu.Lock()
	defer installMu.Unlock()
	if installed {
		return fmt.Errorf("barrier: handlers already installed")
	}
	installed = true
	return nil
}

// UninstallHandlers is a no-op counterpart to InstallHandlers on this
// backend: there is no process-wide handler table to tear down.
func UninstallHandlers() {
	installMu.Lock()
	defer installMu.Unlock()
	installed = false
}

// executeGuarded wraps fn with debug.SetPanicOnFault so an unexpected-address
// fault the Go runtime notices while fn (or anything it calls back into on
// the Go side) is running becomes a recoverable panic instead of a fatal
// crash, and classifies that panic into an abi.ErrorCode. It cannot catch an
// exception raised purely inside the native plug-in's own machine code; see
// the comment on InstallHandlers above for why.
func executeGuarded(fn func()) (code abi.ErrorCode) {
	debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(false)
	defer func() {
		if r := recover(); r != nil {
			code = classifyPanic(r)
		}
	}()
	fn()
	return abi.ErrorNone
}

func classifyPanic(r interface{}) abi.ErrorCode {
	if err, ok := r.(error); ok {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "invalid memory address"), strings.Contains(msg, "nil pointer"):
			return abi.ErrorSegfault
		case strings.Contains(msg, "misaligned"):
			return abi.ErrorMisalign
		}
	}
	return abi.ErrorSegfault
}
