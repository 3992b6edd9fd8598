//go:build windows

package script

import (
	"syscall"

	"github.com/maihd/csfx/pkg/abi"
)

// callEntry invokes the plug-in's csfx_main at addr through the stdlib's
// raw syscall trampoline — purego itself is unix-only, so this backend
// reaches for the stdlib's own mechanism for calling a function pointer
// by address instead.
func callEntry(addr, userdata uintptr, oldState, newState abi.State) uintptr {
	r1, _, _ := syscall.SyscallN(addr, userdata, uintptr(oldState), uintptr(newState))
	return r1
}
