// Package script owns a single plug-in instance end to end: loading it
// from a shadow copy, driving its load/init/unload/reload/quit state
// machine, and threading its opaque userdata handle through every
// invocation of its entry point.
package script

import (
	"sync"

	"github.com/maihd/csfx/pkg/abi"
	"github.com/maihd/csfx/pkg/barrier"
	"github.com/maihd/csfx/pkg/platform"
)

// Script is the managed plug-in instance. The zero value is not usable;
// construct one with New and call Init before the first Update.
type Script struct {
	mu sync.Mutex

	platform platform.Platform

	state   abi.State
	errcode abi.ErrorCode
	userdata uintptr

	realpath string
	temppath string
	libtime  int64

	handle    platform.Handle
	loaded    bool
	entryAddr uintptr

	// Optional companion symbol-file tracking (Windows debug-symbol
	// lock/rebuild pathology). Empty pdbRealpath means "not tracked".
	pdbRealpath  string
	pdbTemppath  string
	pdbtime      int64
}

// Option configures a Script at construction time.
type Option func(*Script)

// WithSymbolFile enables companion symbol-file (PDB) mtime tracking
// alongside the library itself: pdbpath is treated the same way realpath
// is — shadow-copied, and its mtime folds into change detection.
func WithSymbolFile(pdbpath string) Option {
	return func(s *Script) {
		s.pdbRealpath = pdbpath
	}
}

// New returns a Script bound to libpath, not yet initialized.
func New(plat platform.Platform, libpath string, opts ...Option) *Script {
	s := &Script{
		platform: plat,
		realpath: libpath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init resets s to its starting condition and synthesizes its shadow
// path. It does not touch the filesystem beyond probing for an unused
// shadow name.
func (s *Script) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = abi.StateNone
	s.errcode = abi.ErrorNone
	s.userdata = 0
	s.handle = 0
	s.loaded = false
	s.entryAddr = 0
	s.libtime = 0

	s.temppath = s.platform.SynthesizeShadowPath(s.realpath)
	if s.pdbRealpath != "" {
		s.pdbTemppath = s.platform.SynthesizeShadowPath(s.pdbRealpath)
		s.pdbtime = 0
	}
}

// Free tears down a loaded plug-in: invokes its entry with new-state=Quit
// (discarding the returned userdata, per the handoff contract — nothing
// reads it after this point), releases the library, and removes the
// shadow copy. Safe to call when no library was ever loaded.
func (s *Script) Free() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return
	}

	s.invoke(s.state, abi.StateQuit, false)
	s.unloadLibrary()
	s.platform.RemoveFile(s.temppath)
	if s.pdbTemppath != "" {
		s.platform.RemoveFile(s.pdbTemppath)
	}
	s.state = abi.StateQuit
}

// Update is the state-machine step: detect-change, unload-old (one
// tick), copy-and-load-new plus call-new (the next tick).
func (s *Script) Update() abi.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	priorState := s.state
	curMtime, changed := s.detectChange()

	if !changed {
		// Steady state. Failed is sticky: it only clears on the next
		// detected file change, which re-enters the load path below.
		if s.state != abi.StateFailed {
			s.state = abi.StateNone
		}
		return s.state
	}

	if s.loaded {
		s.state = abi.StateUnload
		code := s.invoke(priorState, abi.StateUnload, true)
		s.unloadLibrary()
		if code != abi.ErrorNone {
			s.errcode = code
			s.state = abi.StateFailed
			// Hold the failing mtime so Failed stays sticky until the
			// file changes again.
			s.libtime = curMtime
			return s.state
		}
		// libtime was not advanced, so the next Update call will see the
		// file still newer than libtime and fall through to the load
		// below. This exposes Unload and Init/Reload as two observable
		// ticks.
		return s.state
	}

	s.platform.RemoveFile(s.temppath)
	if !s.platform.CopyFile(s.realpath, s.temppath) {
		// Copy failed: leave state at its previous value, retry only
		// when the file changes again.
		return s.state
	}
	if s.pdbRealpath != "" {
		// Best effort: a missing symbol file does not block the load.
		s.platform.RemoveFile(s.pdbTemppath)
		s.platform.CopyFile(s.pdbRealpath, s.pdbTemppath)
	}

	handle, err := s.platform.LoadLibrary(s.temppath)
	if err != nil {
		return s.state
	}

	newState := abi.StateInit
	if priorState != abi.StateNone {
		newState = abi.StateReload
	}

	s.handle = handle
	s.loaded = true
	if addr, ok := s.platform.Symbol(handle, abi.EntryPointName); ok {
		s.entryAddr = addr
	} else {
		s.entryAddr = 0
	}

	code := s.invoke(priorState, newState, true)
	if code != abi.ErrorNone {
		s.errcode = code
		s.unloadLibrary()
		s.state = abi.StateFailed
		// Hold the failing mtime so Failed stays sticky until the file
		// changes again.
		s.libtime = curMtime
		return s.state
	}

	s.errcode = abi.ErrorNone
	s.libtime = curMtime
	if s.pdbRealpath != "" {
		s.pdbtime = s.platform.Mtime(s.pdbRealpath)
	}
	s.state = newState
	return s.state
}

// Symbol resolves name in the currently loaded plug-in, or reports not
// found if none is loaded or the name is missing.
func (s *Script) Symbol(name string) (uintptr, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return 0, false
	}
	return s.platform.Symbol(s.handle, name)
}

// ErrorMessage is the platform dynamic-loader's last message.
func (s *Script) ErrorMessage() string {
	return s.platform.LibraryError()
}

// State is the last reported lifecycle event.
func (s *Script) State() abi.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ErrorCode is the last trap observed in a barrier region.
func (s *Script) ErrorCode() abi.ErrorCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errcode
}

// Userdata is the opaque handle threaded through plug-in invocations.
func (s *Script) Userdata() uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userdata
}

// detectChange reads the current library mtime and reports whether it has
// moved ahead of the stored value. The companion symbol file, when
// tracked, is consulted only once the library mtime has already advanced:
// it can then refine that verdict (including suppressing it), the same
// way the original only re-checks the pdb after the library itself looks
// changed, never independently of it.
func (s *Script) detectChange() (curMtime int64, changed bool) {
	curMtime = s.platform.Mtime(s.realpath)
	changed = curMtime > s.libtime

	if changed && s.pdbRealpath != "" {
		curPdb := s.platform.Mtime(s.pdbRealpath)
		// A pdb mtime of 0 compared against a stored 0 counts as changed
		// only in this "both unset" case; any other non-increase
		// (including a decrease) does not.
		changed = (curPdb == s.pdbtime && curPdb == 0) || curPdb > s.pdbtime
	}
	return curMtime, changed
}

// entryInvoker is a package variable, not a direct call to callEntry, so
// tests can substitute a pure-Go stub and exercise the state machine
// without a real loaded library behind entryAddr.
var entryInvoker = callEntry

// guardFn is barrier.Guard, kept as a package variable so tests can
// substitute a stub that forces a trap's errcode without needing an
// actual hardware fault.
var guardFn = barrier.Guard

// invoke calls the plug-in entry point inside the fault barrier, if one
// is resolved. storeResult controls whether a successful call's return
// value replaces s.userdata — false for the Quit call, whose return
// value the engine discards per the handoff contract.
func (s *Script) invoke(oldState, newState abi.State, storeResult bool) abi.ErrorCode {
	if s.entryAddr == 0 {
		return abi.ErrorNone
	}
	var result uintptr
	userdata := s.userdata
	addr := s.entryAddr
	code := guardFn(func() {
		result = entryInvoker(addr, userdata, oldState, newState)
	})
	if code == abi.ErrorNone && storeResult {
		s.userdata = result
	}
	return code
}

func (s *Script) unloadLibrary() {
	if s.handle != 0 {
		s.platform.FreeLibrary(s.handle)
	}
	s.handle = 0
	s.entryAddr = 0
	s.loaded = false
	// Invariant: a non-absent handle always implies libtime > 0, so
	// releasing the handle resets libtime too. Update's trap paths set it
	// again afterward to keep Failed sticky.
	s.libtime = 0
}
