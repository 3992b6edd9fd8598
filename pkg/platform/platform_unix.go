//go:build linux || darwin || freebsd

package platform

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
)

// unixPlatform loads libraries through purego's cgo-free dlopen binding. It
// also binds dlclose itself (resolved as an ordinary libc symbol through
// purego.RegisterLibFunc) so FreeLibrary can actually unload a library,
// something purego does not expose directly.
type unixPlatform struct {
	mu          sync.Mutex
	lastErr     string
	dlclose     func(handle uintptr) int32
	dlcloseOnce sync.Once
}

// New returns the real OS-backed Platform implementation for this process.
func New() Platform {
	return &unixPlatform{}
}

func (p *unixPlatform) ensureDlclose() {
	p.dlcloseOnce.Do(func() {
		libc, err := purego.Dlopen(systemLibcName(), purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			// Without libc we can still load/symbol-resolve; FreeLibrary will
			// just become a no-op leak, which is survivable (the shadow file
			// is still removed by the caller).
			return
		}
		purego.RegisterLibFunc(&p.dlclose, libc, "dlclose")
	})
}

func systemLibcName() string {
	switch runtime.GOOS {
	case "darwin":
		return "/usr/lib/libSystem.B.dylib"
	case "freebsd":
		return "libc.so.7"
	default:
		return "libc.so.6"
	}
}

func dlopenFlags() int {
	return purego.RTLD_NOW | purego.RTLD_LOCAL
}

func (p *unixPlatform) LoadLibrary(path string) (Handle, error) {
	h, err := purego.Dlopen(path, dlopenFlags())
	if err != nil {
		p.setError(err.Error())
		return 0, err
	}
	return Handle(h), nil
}

func (p *unixPlatform) FreeLibrary(h Handle) error {
	p.ensureDlclose()
	if p.dlclose == nil {
		// No libc binding available; treat as already-released.
		return nil
	}
	if rc := p.dlclose(uintptr(h)); rc != 0 {
		err := fmt.Errorf("platform: dlclose failed for handle %#x", uintptr(h))
		p.setError(err.Error())
		return err
	}
	return nil
}

func (p *unixPlatform) Symbol(h Handle, name string) (uintptr, bool) {
	addr, err := purego.Dlsym(uintptr(h), name)
	if err != nil {
		p.setError(err.Error())
		return 0, false
	}
	return addr, true
}

func (p *unixPlatform) LibraryError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *unixPlatform) setError(msg string) {
	p.mu.Lock()
	p.lastErr = msg
	p.mu.Unlock()
}

func (p *unixPlatform) Mtime(path string) int64 { return fileMtime(path) }

func (p *unixPlatform) CopyFile(src, dst string) bool { return fileCopy(src, dst) }

func (p *unixPlatform) RemoveFile(path string) bool { return fileRemove(path) }

func (p *unixPlatform) SynthesizeShadowPath(realpath string) string {
	return synthesizeShadowPath(realpath)
}
