package script

import (
	"testing"

	"github.com/maihd/csfx/pkg/abi"
	"github.com/maihd/csfx/pkg/platform"
)

// fakePlatform is an in-memory stand-in for platform.Platform: files are
// just a map of path to mtime (a path exists iff it has a key), library
// handles are a monotonic counter, and copy/load always succeed unless
// the test arranges otherwise.
type fakePlatform struct {
	mtimes     map[string]int64
	loadFails  map[string]bool
	copyFails  map[string]bool
	nextHandle platform.Handle
	loaded     map[platform.Handle]string
	hasEntry   bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		mtimes:    map[string]int64{},
		loadFails: map[string]bool{},
		copyFails: map[string]bool{},
		loaded:    map[platform.Handle]string{},
		hasEntry:  true,
	}
}

func (p *fakePlatform) LoadLibrary(path string) (platform.Handle, error) {
	if p.loadFails[path] {
		return 0, errLoad
	}
	p.nextHandle++
	p.loaded[p.nextHandle] = path
	return p.nextHandle, nil
}

func (p *fakePlatform) FreeLibrary(h platform.Handle) error {
	delete(p.loaded, h)
	return nil
}

func (p *fakePlatform) Symbol(h platform.Handle, name string) (uintptr, bool) {
	if name == abi.EntryPointName && p.hasEntry {
		return 1, true
	}
	return 0, false
}

func (p *fakePlatform) LibraryError() string { return "" }

func (p *fakePlatform) Mtime(path string) int64 { return p.mtimes[path] }

func (p *fakePlatform) CopyFile(src, dst string) bool {
	if p.copyFails[src] {
		return false
	}
	p.mtimes[dst] = p.mtimes[src]
	return true
}

func (p *fakePlatform) RemoveFile(path string) bool {
	delete(p.mtimes, path)
	return true
}

func (p *fakePlatform) SynthesizeShadowPath(realpath string) string {
	return realpath + ".0"
}

type stubErr struct{ msg string }

func (e *stubErr) Error() string { return e.msg }

var errLoad = &stubErr{"fake: load failed"}

// withSink installs a stub entryInvoker that appends new_state to sink
// and restores the real one on cleanup.
func withSink(t *testing.T, sink *[]abi.State) {
	t.Helper()
	prev := entryInvoker
	entryInvoker = func(addr, userdata uintptr, oldState, newState abi.State) uintptr {
		*sink = append(*sink, newState)
		return userdata
	}
	t.Cleanup(func() { entryInvoker = prev })
}

func TestScript_ColdStartSingleInit(t *testing.T) {
	var sink []abi.State
	withSink(t, &sink)

	p := newFakePlatform()
	p.mtimes["/tmp/plug.so"] = 1000

	s := New(p, "/tmp/plug.so")
	s.Init()

	got := s.Update()
	if got != abi.StateInit {
		t.Fatalf("expected Init, got %v", got)
	}
	if len(sink) != 1 || sink[0] != abi.StateInit {
		t.Fatalf("expected sink=[Init], got %v", sink)
	}
	if s.libtime != 1000 {
		t.Fatalf("expected libtime=1000, got %d", s.libtime)
	}
	if _, ok := p.mtimes["/tmp/plug.so.0"]; !ok {
		t.Fatal("expected shadow file /tmp/plug.so.0 to exist")
	}
}

func TestScript_SteadyState(t *testing.T) {
	var sink []abi.State
	withSink(t, &sink)

	p := newFakePlatform()
	p.mtimes["/tmp/plug.so"] = 1000
	s := New(p, "/tmp/plug.so")
	s.Init()
	s.Update()

	sink = nil
	var got []abi.State
	for i := 0; i < 4; i++ {
		got = append(got, s.Update())
	}
	for _, g := range got {
		if g != abi.StateNone {
			t.Fatalf("expected all None, got %v", got)
		}
	}
	if len(sink) != 0 {
		t.Fatalf("expected sink unchanged, got %v", sink)
	}
}

func TestScript_SteadyStateWithMissingSymbolFile(t *testing.T) {
	// Regression test: with a tracked but absent symbol file, pdbtime
	// stays 0 across loads, and a naive "pdb mtime 0 == stored 0 counts
	// as changed" check evaluated independently of the library would
	// report a change on every single tick forever. detectChange must
	// only consult the pdb once the library mtime has already advanced.
	var sink []abi.State
	withSink(t, &sink)

	p := newFakePlatform()
	p.mtimes["/tmp/plug.so"] = 1000
	// /tmp/plug.so.pdb is deliberately absent from p.mtimes, so Mtime
	// returns 0 for it on every call.
	s := New(p, "/tmp/plug.so", WithSymbolFile("/tmp/plug.so.pdb"))
	s.Init()
	s.Update() // cold Init

	sink = nil
	var got []abi.State
	for i := 0; i < 4; i++ {
		got = append(got, s.Update())
	}
	for _, g := range got {
		if g != abi.StateNone {
			t.Fatalf("expected all None with a stable library and missing pdb, got %v", got)
		}
	}
	if len(sink) != 0 {
		t.Fatalf("expected sink unchanged, got %v", sink)
	}
}

func TestScript_Reload(t *testing.T) {
	var sink []abi.State
	withSink(t, &sink)

	p := newFakePlatform()
	p.mtimes["/tmp/plug.so"] = 1000
	s := New(p, "/tmp/plug.so")
	s.Init()
	s.Update()

	p.mtimes["/tmp/plug.so"] = 1005
	sink = nil

	first := s.Update()
	if first != abi.StateUnload {
		t.Fatalf("expected Unload, got %v", first)
	}
	second := s.Update()
	if second != abi.StateReload {
		t.Fatalf("expected Reload, got %v", second)
	}
	if len(sink) != 2 || sink[0] != abi.StateUnload || sink[1] != abi.StateReload {
		t.Fatalf("expected sink=[Unload, Reload], got %v", sink)
	}
	if s.libtime != 1005 {
		t.Fatalf("expected libtime=1005, got %d", s.libtime)
	}
}

func TestScript_TrapOnReload(t *testing.T) {
	// guardFn is stubbed for this whole test (never calling fn) since
	// s.entryAddr is a bogus sentinel address from fakePlatform, not a
	// real loaded symbol — calling the real barrier/entryInvoker through
	// it would dereference that address for real.
	guardFn = func(fn func()) abi.ErrorCode {
		return abi.ErrorNone
	}
	t.Cleanup(func() { guardFn = defaultGuard })

	p := newFakePlatform()
	p.mtimes["/tmp/plug.so"] = 1000
	s := New(p, "/tmp/plug.so")
	s.Init()
	s.Update() // cold Init

	p.mtimes["/tmp/plug.so"] = 1010

	first := s.Update()
	if first != abi.StateUnload {
		t.Fatalf("expected Unload, got %v", first)
	}

	guardFn = func(fn func()) abi.ErrorCode {
		return abi.ErrorSegfault
	}

	second := s.Update()
	if second != abi.StateFailed {
		t.Fatalf("expected Failed, got %v", second)
	}
	if s.ErrorCode() != abi.ErrorSegfault {
		t.Fatalf("expected errcode=Segfault, got %v", s.ErrorCode())
	}
	if s.loaded {
		t.Fatal("expected no library loaded after a trap")
	}

	guardFn = func(fn func()) abi.ErrorCode {
		return abi.ErrorNone
	}
	third := s.Update()
	if third != abi.StateFailed {
		t.Fatalf("expected sticky Failed on a quiet tick, got %v", third)
	}

	p.mtimes["/tmp/plug.so"] = 1011
	fourth := s.Update() // Failed -> not None, prior state Failed: goes straight to load+Reload
	if fourth != abi.StateReload {
		t.Fatalf("expected Reload when recovering from Failed, got %v", fourth)
	}
}

func TestScript_MissingEntryPoint(t *testing.T) {
	p := newFakePlatform()
	p.hasEntry = false
	p.mtimes["/tmp/plug.so"] = 1000
	s := New(p, "/tmp/plug.so")
	s.Init()

	got := s.Update()
	if got != abi.StateInit {
		t.Fatalf("expected Init, got %v", got)
	}
	if s.Userdata() != 0 {
		t.Fatalf("expected userdata unchanged at 0, got %d", s.Userdata())
	}
	if s.ErrorCode() != abi.ErrorNone {
		t.Fatalf("expected no trap recorded, got %v", s.ErrorCode())
	}

	p.mtimes["/tmp/plug.so"] = 1005
	s.Update()
	got = s.Update()
	if got != abi.StateReload {
		t.Fatalf("expected Reload, got %v", got)
	}
}

var defaultGuard = guardFn
