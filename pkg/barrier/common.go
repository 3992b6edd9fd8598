package barrier

import "runtime"

// lockOSThreadForGuard pins the calling goroutine to its current OS thread
// for the duration of a guarded call. If the call traps, the thread is
// simply never unlocked and never returns to the scheduler's pool — Go
// notices a locked goroutine exiting abnormally and retires the thread
// rather than reusing it, which is exactly the "abandon the thread" the
// package doc describes.
func lockOSThreadForGuard() {
	runtime.LockOSThread()
}

func unlockOSThreadForGuard() {
	runtime.UnlockOSThread()
}
