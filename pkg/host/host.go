// Package host is the small public surface a program links against to
// use the hot-reload engine: process-wide init/quit of the fault
// barrier's trap handlers. Script, Platform, and the rest of the engine
// are usable independently of this package; it exists only to guard
// InitProcess/QuitProcess's reentrancy contract in one place.
package host

import (
	"sync"

	"github.com/maihd/csfx/pkg/barrier"
)

var mu sync.Mutex

// InitProcess installs the fault barrier's trap handlers exactly once.
// Calling it again without an intervening QuitProcess is an error.
func InitProcess() error {
	mu.Lock()
	defer mu.Unlock()

	return barrier.InstallHandlers()
}

// QuitProcess uninstalls the fault barrier's trap handlers. Safe to call
// even if InitProcess was never called.
func QuitProcess() {
	mu.Lock()
	defer mu.Unlock()

	if !barrier.Installed() {
		return
	}
	barrier.UninstallHandlers()
}
