//go:build !windows

package unlock

// unlockSymbolFile is never actually reached on this platform — Unlock
// short-circuits on GOOS first — but still needs a body so the package
// compiles everywhere a host might import it.
func unlockSymbolFile(path string, deleteAfter bool) {}
