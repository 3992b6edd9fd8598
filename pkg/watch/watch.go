// Package watch is the auxiliary file-watcher spec.md describes but
// leaves unspecified in mechanism: it polls a set of source files on a
// ticker and shells out to a configured rebuild command whenever
// pkg/filetime reports a change, matching the original implementation's
// worked example of calling WatchFiles again after handling a change to
// acknowledge it.
package watch

import (
	"context"
	"os/exec"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/maihd/csfx/pkg/filetime"
)

// Watcher polls a fixed set of paths and runs a rebuild command whenever
// any of them changes.
type Watcher struct {
	mtimer  filetime.Mtimer
	entries []*filetime.Entry
	command []string
	interval time.Duration

	stop chan struct{}
	done chan struct{}
}

// Option configures a Watcher at construction time.
type Option func(*Watcher)

// WithInterval overrides the default poll interval of one second.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// New returns a Watcher over paths that, on change, runs command (argv0
// plus arguments) via os/exec. command is treated as an opaque external
// collaborator: the watcher never parses its output or manages the
// toolchain behind it, per spec.md's own "out of scope" boundary for the
// build tool.
func New(mtimer filetime.Mtimer, paths []string, command []string, opts ...Option) *Watcher {
	entries := make([]*filetime.Entry, len(paths))
	for i, p := range paths {
		entries[i] = &filetime.Entry{Path: p}
	}

	w := &Watcher{
		mtimer:   mtimer,
		entries:  entries,
		command:  command,
		interval: time.Second,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the poll loop in its own goroutine until ctx is canceled or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Stop signals the poll loop to exit and waits for it to do so.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			if filetime.WatchFiles(w.mtimer, w.entries) {
				w.rebuild(ctx)
			}
		}
	}
}

// runCommand is a package variable, not a direct os/exec call, so tests
// can substitute a recording stub instead of spawning a real process.
var runCommand = runExecCommand

func runExecCommand(ctx context.Context, command []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	return cmd.CombinedOutput()
}

func (w *Watcher) rebuild(ctx context.Context) {
	if len(w.command) == 0 {
		return
	}
	log.Infof("watch: source change detected, running rebuild command: %v", w.command)

	output, err := runCommand(ctx, w.command)
	if err != nil {
		log.Errorf("watch: rebuild command failed: %v\n%s", err, output)
		return
	}
	if len(output) > 0 {
		log.Debugf("watch: rebuild output:\n%s", output)
	}
}
