// Package platform concentrates every OS-specific call the engine needs —
// dynamic-library load/free/symbol resolution, file mtimes, file copy and
// removal, and shadow-path synthesis — behind one interface, so the engine
// and the fault barrier can be exercised against a mock in tests instead of
// a real shared library and a real filesystem.
package platform

import "fmt"

// Handle is an opaque reference to a loaded dynamic library. Its zero value
// means "no library loaded."
type Handle uintptr

// Platform is the OS abstraction the script engine is built on. A given
// process has exactly one real implementation (returned by New), selected
// at compile time by build tags; tests substitute a fake.
type Platform interface {
	// LoadLibrary maps a shared library and returns a handle, or an error
	// if the platform loader rejected it. Lazy symbol binding is acceptable.
	LoadLibrary(path string) (Handle, error)

	// FreeLibrary releases a handle. After it returns, the handle must not
	// be used again.
	FreeLibrary(h Handle) error

	// Symbol resolves an exported name in h. It returns (0, false) if the
	// name is not found — that is not itself an error.
	Symbol(h Handle, name string) (addr uintptr, ok bool)

	// LibraryError returns the last platform dynamic-loader message. Its
	// value is valid only until the next Platform call.
	LibraryError() string

	// Mtime returns path's last-modified time in whole seconds since a
	// fixed epoch, or 0 if path does not exist or is inaccessible.
	Mtime(path string) int64

	// CopyFile overwrites dst with src's bytes. It returns true iff dst
	// afterwards has identical contents to src.
	CopyFile(src, dst string) bool

	// RemoveFile best-effort removes path. A missing file is not an error.
	RemoveFile(path string) bool

	// SynthesizeShadowPath returns a sibling path of realpath guaranteed
	// not to exist at the moment of the call.
	SynthesizeShadowPath(realpath string) string
}

// ErrSymbolNotFound is never returned by Symbol (a missing symbol is
// reported via the ok bool) — it exists so callers that want a proper error
// from a missing required symbol can construct one uniformly.
func ErrSymbolNotFound(name string) error {
	return fmt.Errorf("platform: symbol not found: %s", name)
}
