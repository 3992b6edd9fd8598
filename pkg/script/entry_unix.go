//go:build linux || darwin || freebsd

package script

import (
	"github.com/ebitengine/purego"

	"github.com/maihd/csfx/pkg/abi"
)

// callEntry invokes the plug-in's csfx_main at addr. purego.SyscallN calls
// an arbitrary C function pointer by address with integer-width
// arguments — the same primitive purego.RegisterLibFunc builds its
// generated trampolines on — used directly here because the entry point
// is resolved by address, not by library-plus-name.
func callEntry(addr, userdata uintptr, oldState, newState abi.State) uintptr {
	r1, _, _ := purego.SyscallN(addr, userdata, uintptr(oldState), uintptr(newState))
	return r1
}
