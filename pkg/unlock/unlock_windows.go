//go:build windows

package unlock

import (
	"sync"
	"syscall"
	"unsafe"
)

// Restart Manager (rstrtmgr.dll) is the supported public API for
// discovering which processes hold a file open and asking them to
// release it — the same facility the original implementation's
// unlocker builds its session on, here used on its own rather than
// alongside the undocumented NtQuerySystemInformation/NtQueryObject
// handle-stealing the original falls back to (see DESIGN.md).
var (
	rstrtmgr                = syscall.NewLazyDLL("rstrtmgr.dll")
	procRmStartSession      = rstrtmgr.NewProc("RmStartSession")
	procRmRegisterResources = rstrtmgr.NewProc("RmRegisterResources")
	procRmShutdown          = rstrtmgr.NewProc("RmShutdown")
	procRmEndSession        = rstrtmgr.NewProc("RmEndSession")

	kernel32DeleteFile = syscall.NewLazyDLL("kernel32.dll").NewProc("DeleteFileW")
)

const (
	cchRmSessionKey = 32
	// rmForceShutdown asks registered applications to close the
	// resource immediately rather than waiting for a graceful save.
	rmForceShutdown = 0x1
)

var rmSessionMu sync.Mutex

// unlockSymbolFile asks every process with path open to release it via
// a Restart Manager session, then optionally deletes path.
func unlockSymbolFile(path string, deleteAfter bool) {
	// Restart Manager sessions are process-global state on the
	// RmStartSession side in older Windows releases; serialize our own
	// use of it so concurrent unlock calls from multiple Scripts don't
	// stomp on each other's session key buffer.
	rmSessionMu.Lock()
	defer rmSessionMu.Unlock()

	ptr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return
	}

	var session uint32
	var sessionKey [cchRmSessionKey + 1]uint16
	ret, _, _ := procRmStartSession.Call(
		uintptr(unsafe.Pointer(&session)),
		0,
		uintptr(unsafe.Pointer(&sessionKey[0])),
	)
	if ret != 0 {
		return
	}
	defer procRmEndSession.Call(uintptr(session))

	files := []*uint16{ptr}
	ret, _, _ = procRmRegisterResources.Call(
		uintptr(session),
		1, uintptr(unsafe.Pointer(&files[0])),
		0, 0,
		0, 0,
	)
	if ret != 0 {
		return
	}

	// RmShutdown asks every process Restart Manager found registered
	// against the file (via the session above) to release it. Skipping
	// RmGetList here: it exists to let a caller show the user which
	// processes are about to be disturbed, which this unattended
	// rebuild path has no use for.
	procRmShutdown.Call(uintptr(session), uintptr(rmForceShutdown), 0)

	if deleteAfter {
		kernel32DeleteFile.Call(uintptr(unsafe.Pointer(ptr)))
	}
}
