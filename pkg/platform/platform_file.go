package platform

import (
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/zeebo/xxh3"
)

// shadowMu serializes the shadow-path existence probe per real library
// path, so no two probes for the same realpath run at once. It does not
// reserve the name it returns: the shadow file is only created by the
// first load, so two Scripts initialized for the same realpath before
// either has loaded still receive the same suffix.
var shadowMu sync.Map // map[string]*sync.Mutex

func lockFor(path string) *sync.Mutex {
	mu, _ := shadowMu.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// fileMtime returns path's mtime in whole seconds since the Unix epoch, or 0
// if path doesn't exist or can't be stat'd.
func fileMtime(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.ModTime().Unix()
}

// fileCopy overwrites dst with src's bytes and verifies equality by hashing
// src as it is copied and dst afterward, rather than byte-comparing the two.
func fileCopy(src, dst string) bool {
	in, err := os.Open(src)
	if err != nil {
		return false
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return false
	}

	srcHash := xxh3.New()
	if _, err := io.Copy(io.MultiWriter(out, srcHash), in); err != nil {
		out.Close()
		return false
	}
	if err := out.Close(); err != nil {
		return false
	}

	dstFile, err := os.Open(dst)
	if err != nil {
		return false
	}
	defer dstFile.Close()

	dstHash := xxh3.New()
	if _, err := io.Copy(dstHash, dstFile); err != nil {
		return false
	}

	return srcHash.Sum128() == dstHash.Sum128()
}

// fileRemove best-effort removes path; a missing file is not an error.
func fileRemove(path string) bool {
	err := os.Remove(path)
	return err == nil || os.IsNotExist(err)
}

// synthesizeShadowPath returns the lowest-numbered "<realpath>.<n>" sibling
// that doesn't exist at the moment of the call.
func synthesizeShadowPath(realpath string) string {
	mu := lockFor(realpath)
	mu.Lock()
	defer mu.Unlock()

	for n := 0; ; n++ {
		candidate := shadowCandidate(realpath, n)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func shadowCandidate(realpath string, n int) string {
	return realpath + "." + strconv.Itoa(n)
}
