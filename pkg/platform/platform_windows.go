//go:build windows

package platform

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"
)

var (
	kernel32           = syscall.NewLazyDLL("kernel32.dll")
	procLoadLibraryW   = kernel32.NewProc("LoadLibraryW")
	procFreeLibrary    = kernel32.NewProc("FreeLibrary")
	procGetProcAddress = kernel32.NewProc("GetProcAddress")
	procFormatMessageW = kernel32.NewProc("FormatMessageW")
)

const (
	formatMessageFromSystem    = 0x00001000
	formatMessageIgnoreInserts = 0x00000200
	langNeutral                = 0x00
	sublangDefault             = 0x01
)

// windowsPlatform loads libraries through kernel32's LoadLibraryW family, the
// same APIs the original C implementation binds directly and the pattern
// other purego-adjacent Go loaders (platform_windows.go in the pack) use
// when purego itself doesn't cover a platform: purego is unix-only, so
// Windows falls back to the stdlib syscall package's lazy-DLL binding.
type windowsPlatform struct {
	mu      sync.Mutex
	lastErr string
}

// New returns the real OS-backed Platform implementation for this process.
func New() Platform {
	return &windowsPlatform{}
}

func (p *windowsPlatform) LoadLibrary(path string) (Handle, error) {
	ptr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		p.setError(err.Error())
		return 0, err
	}
	h, _, callErr := procLoadLibraryW.Call(uintptr(unsafe.Pointer(ptr)))
	if h == 0 {
		p.setError(p.formatLastError(callErr))
		return 0, fmt.Errorf("platform: LoadLibraryW failed: %s", p.lastErr)
	}
	return Handle(h), nil
}

func (p *windowsPlatform) FreeLibrary(h Handle) error {
	ret, _, callErr := procFreeLibrary.Call(uintptr(h))
	if ret == 0 {
		err := fmt.Errorf("platform: FreeLibrary failed: %s", p.formatLastError(callErr))
		p.setError(err.Error())
		return err
	}
	return nil
}

func (p *windowsPlatform) Symbol(h Handle, name string) (uintptr, bool) {
	cname, err := syscall.BytePtrFromString(name)
	if err != nil {
		return 0, false
	}
	addr, _, _ := procGetProcAddress.Call(uintptr(h), uintptr(unsafe.Pointer(cname)))
	if addr == 0 {
		return 0, false
	}
	return addr, true
}

func (p *windowsPlatform) LibraryError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *windowsPlatform) setError(msg string) {
	p.mu.Lock()
	p.lastErr = msg
	p.mu.Unlock()
}

// formatLastError mirrors the original implementation's
// csfx__dlib_errmsg: it turns a GetLastError() value into the system's
// message text. Nothing is cached; the caller stores the result as the
// message LibraryError reports until the next failing call.
func (p *windowsPlatform) formatLastError(lastErr error) string {
	errno, ok := lastErr.(syscall.Errno)
	if !ok {
		return lastErr.Error()
	}
	buf := make([]uint16, 256)
	langID := uint32(sublangDefault)<<10 | uint32(langNeutral)
	n, _, _ := procFormatMessageW.Call(
		uintptr(formatMessageFromSystem|formatMessageIgnoreInserts),
		0,
		uintptr(errno),
		uintptr(langID),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		0,
	)
	if n == 0 {
		return errno.Error()
	}
	return syscall.UTF16ToString(buf[:n])
}

func (p *windowsPlatform) Mtime(path string) int64 { return fileMtime(path) }

func (p *windowsPlatform) CopyFile(src, dst string) bool { return fileCopy(src, dst) }

func (p *windowsPlatform) RemoveFile(path string) bool { return fileRemove(path) }

func (p *windowsPlatform) SynthesizeShadowPath(realpath string) string {
	return synthesizeShadowPath(realpath)
}
