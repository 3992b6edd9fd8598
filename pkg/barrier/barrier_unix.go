//go:build linux || darwin || freebsd

package barrier

import (
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/maihd/csfx/pkg/abi"
)

// trapSignals mirrors the original implementation's csfx__signals table
// (SIGBUS, SIGSYS, SIGILL, SIGSEGV, SIGABRT). SIGTRAP is forwarded too, but
// it has no error kind of its own: classify maps it to abi.ErrorNone and
// dispatch re-raises it instead of reporting it to a guard.
var trapSignals = []os.Signal{
	unix.SIGBUS,
	unix.SIGSYS,
	unix.SIGILL,
	unix.SIGSEGV,
	unix.SIGABRT,
	unix.SIGTRAP,
}

var (
	sigCh  chan os.Signal
	stopCh chan struct{}
)

// InstallHandlers registers the process-wide signal forwarding this package
// needs. It is not reentrant: calling it twice without an intervening
// UninstallHandlers returns an error.
//
// Per the os/signal contract, once a synchronous signal like SIGSEGV has a
// Notify subscriber, a trap arising in non-Go code (exactly where plug-in
// calls run) is delivered to that subscriber instead of crashing the
// process — this is the mechanism the whole package rests on.
func InstallHandlers() error {
	installMu.Lock()
	defer installMu.Unlock()

	if installed {
		return fmt.Errorf("barrier: handlers already installed")
	}

	sigCh = make(chan os.Signal, 8)
	stopCh = make(chan struct{})
	signal.Notify(sigCh, trapSignals...)

	go dispatch(sigCh, stopCh)

	installed = true
	return nil
}

// UninstallHandlers restores default signal disposition.
func UninstallHandlers() {
	installMu.Lock()
	defer installMu.Unlock()

	if !installed {
		return
	}
	signal.Stop(sigCh)
	close(stopCh)
	installed = false
}

func dispatch(ch chan os.Signal, stop chan struct{}) {
	for {
		select {
		case sig := <-ch:
			code := classify(sig)
			if code == abi.ErrorNone || !reportTrap(code) {
				// Either the signal has no error kind, or no active guard
				// claimed this trap: it happened on a thread this package
				// isn't responsible for. Re-raise the
				// default disposition so the process doesn't silently
				// swallow a crash nobody is watching for.
				signal.Reset(sig)
				if p, err := os.FindProcess(os.Getpid()); err == nil {
					_ = p.Signal(sig)
				}
			}
		case <-stop:
			return
		}
	}
}

// executeGuarded just runs fn: a trap occurring inside it arrives through
// the signal dispatcher calling reportTrap directly, on a different
// goroutine, never through this call returning.
func executeGuarded(fn func()) abi.ErrorCode {
	fn()
	return abi.ErrorNone
}

func classify(sig os.Signal) abi.ErrorCode {
	switch sig {
	case unix.SIGSEGV:
		return abi.ErrorSegfault
	case unix.SIGILL:
		return abi.ErrorIllegalInstruction
	case unix.SIGBUS:
		return abi.ErrorMisalign
	case unix.SIGSYS:
		return abi.ErrorSyscall
	case unix.SIGABRT:
		return abi.ErrorAbort
	default:
		return abi.ErrorNone
	}
}
