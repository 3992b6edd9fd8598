// Package unlock implements the optional debug-symbol-file unlocker: on
// platforms where a loaded library pins its companion symbol file open in
// other processes (typically a debugger attached to the host), the
// rebuild step downstream of the watcher cannot overwrite that file.
// Unlock enumerates the processes holding it and asks them to release it,
// optionally deleting the file outright afterward.
//
// This component is strictly optional, as the design calls for: hosts on
// platforms without the pathology should simply never call it.
package unlock

import "runtime"

// Option configures an Unlocker at construction time.
type Option func(*Unlocker)

// WithDelete also removes the symbol file after its handles are closed.
// Implies unlocking; passing it alone is sufficient.
func WithDelete() Option {
	return func(u *Unlocker) { u.delete = true }
}

// WithSingleThread runs Unlock inline on the caller's goroutine instead
// of dispatching it to its own goroutine. Update ticks then block on the
// unlock; use only when the caller already runs off the host's main
// loop.
func WithSingleThread() Option {
	return func(u *Unlocker) { u.singleThread = true }
}

// Unlocker holds the compile-time-equivalent configuration selectors
// from spec §6: unlock-symbol-file, delete-symbol-file,
// single-thread-unlocker.
type Unlocker struct {
	delete       bool
	singleThread bool
}

// New returns an Unlocker configured by opts. On platforms other than
// Windows, Unlock is a no-op: the pathology this package works around is
// specific to one mainstream Windows toolchain's debugger.
func New(opts ...Option) *Unlocker {
	u := &Unlocker{}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Unlock releases path (a companion symbol file) from whichever
// processes hold it open, and removes it afterward if configured to. It
// does not block the caller unless WithSingleThread was given.
func (u *Unlocker) Unlock(path string) {
	if runtime.GOOS != "windows" {
		return
	}
	if u.singleThread {
		unlockSymbolFile(path, u.delete)
		return
	}
	go unlockSymbolFile(path, u.delete)
}
