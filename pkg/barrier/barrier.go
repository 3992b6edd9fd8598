// Package barrier turns synchronous hardware traps (segfault, illegal
// instruction, misaligned access, bad syscall, stack overflow, abort) raised
// while plug-in code is executing into an abi.ErrorCode, without taking the
// host process down with them.
//
// Caveat, by design, not by oversight: catching a hardware trap and
// continuing does not make the process correct again. The contract is "host
// survives, plug-in is disabled," never "process state is sound." A region
// that traps abandons the OS thread it was running on — that thread is
// never scheduled again — rather than attempting to resume execution from
// an undefined point.
package barrier

import (
	"sync"
	"sync/atomic"

	"github.com/maihd/csfx/pkg/abi"
)

// guard is the bookkeeping for one in-flight barrier region. Only one can
// be active at a time: the engine this package serves is single-threaded
// cooperative (Script.Update calls happen sequentially on the host's own
// thread), so a single package-level slot is enough to realize the "thread
// local jump target" the design calls for, without needing true OS
// thread-id plumbing that os/signal doesn't expose.
type guard struct {
	result chan abi.ErrorCode
}

var (
	activeGuard atomic.Pointer[guard]

	installMu sync.Mutex
	installed bool
)

// Installed reports whether InstallHandlers has been called without a
// matching UninstallHandlers.
func Installed() bool {
	installMu.Lock()
	defer installMu.Unlock()
	return installed
}

// Guard runs fn on a dedicated, OS-thread-locked goroutine and converts any
// trap raised while it runs into an abi.ErrorCode. It returns
// abi.ErrorNone when fn returns normally.
//
// Guard must not be called re-entrantly from within another Guard's fn —
// doing so panics, since only one region may be active at a time.
func Guard(fn func()) abi.ErrorCode {
	g := &guard{result: make(chan abi.ErrorCode, 1)}
	if !activeGuard.CompareAndSwap(nil, g) {
		panic("barrier: Guard called re-entrantly")
	}

	go runGuarded(g, fn)

	code := <-g.result
	activeGuard.CompareAndSwap(g, nil)
	return code
}

func runGuarded(g *guard, fn func()) {
	lockOSThreadForGuard()
	// executeGuarded is the per-platform half of this package: on Unix it
	// is a direct call to fn, with trap delivery left entirely to the
	// signal dispatcher calling reportTrap from outside this goroutine. On
	// Windows, where no such dispatcher exists, it wraps fn with
	// debug.SetPanicOnFault and recovers the resulting panic itself.
	code := executeGuarded(fn)
	// Release the thread for reuse and report the outcome. If a trap had
	// already fired for this guard through the signal path (it can't on
	// Unix — the dispatcher only looks at activeGuard, and fn would not
	// have returned normally after a trap interrupted it), this send
	// would be the only one ever attempted, since the channel is
	// single-buffered and the guard is torn down by the first of these
	// two senders.
	unlockOSThreadForGuard()
	select {
	case g.result <- code:
	default:
	}
}

// reportTrap is called by the installed signal/exception handler when a
// trap is attributed to the currently active guard. It never blocks.
func reportTrap(code abi.ErrorCode) bool {
	g := activeGuard.Load()
	if g == nil {
		return false
	}
	select {
	case g.result <- code:
		return true
	default:
		return false
	}
}
