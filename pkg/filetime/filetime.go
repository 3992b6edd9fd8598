// Package filetime implements the timestamp-driven change detector the
// script engine and the auxiliary file-watcher both build on: a stored
// mtime per path, bumped forward only when the file on disk has genuinely
// moved ahead of it.
package filetime

// Mtimer is the single platform call this package needs. It is satisfied
// by platform.Platform.Mtime, kept as its own interface here so callers
// that only watch files (and never load libraries) don't have to depend
// on the rest of the platform package.
type Mtimer interface {
	Mtime(path string) int64
}

// Entry is a {time, path} pair: the last mtime this package observed for
// path, and the path itself. The zero value has time=0, which the first
// Check call always reports as changed against any file that actually
// exists (a real mtime is always > 0).
type Entry struct {
	Path string
	Time int64
}

// Check reads the current mtime of e.Path through m and compares it
// against e.Time. If the current value is strictly greater, e.Time is
// overwritten and Check returns true. A path that has disappeared (mtime
// 0) compared against a prior real mtime is not reported as a change —
// the caller is expected to treat it as a transient.
func Check(m Mtimer, e *Entry) bool {
	cur := m.Mtime(e.Path)
	if cur > e.Time {
		e.Time = cur
		return true
	}
	return false
}

// WatchFiles calls Check on every entry, unconditionally, and returns true
// iff at least one of them reported change. It never short-circuits: a
// simultaneous multi-file edit must still advance every entry that moved,
// so instrumentation counting Check calls sees exactly len(entries) calls
// regardless of how many actually changed.
func WatchFiles(m Mtimer, entries []*Entry) bool {
	changed := false
	for _, e := range entries {
		if Check(m, e) {
			changed = true
		}
	}
	return changed
}
