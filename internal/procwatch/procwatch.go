// Package procwatch observes the media player process with gopsutil. It
// feeds two signals to the decision engine: a termination callback when
// the watched process disappears, and the process start time used to skip
// queries against a freshly launched (possibly restarted) player.
package procwatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/morpheus1988wer/HertzBridge/internal/logging"
)

const defaultPollInterval = 2 * time.Second

// Watcher polls for a process by name and reports lifecycle changes.
type Watcher struct {
	processName string
	interval    time.Duration
	onExit      func()
	log         *slog.Logger

	mu      sync.Mutex
	proc    *process.Process
	started time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher for the named process. onExit is invoked, at most
// once per observed exit, from the watcher's own goroutine.
func New(processName string, onExit func()) *Watcher {
	return &Watcher{
		processName: processName,
		interval:    defaultPollInterval,
		onExit:      onExit,
		log:         logging.ForService("procwatch"),
	}
}

// Start begins polling. Returns immediately.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop terminates polling and waits for the watcher goroutine.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// StartedAt returns the watched process's start time. ok is false when the
// process is not currently running or its start time is unknown.
func (w *Watcher) StartedAt() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.proc == nil || w.started.IsZero() {
		return time.Time{}, false
	}
	return w.started, true
}

// Running reports whether the watched process is currently tracked.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.proc != nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

// refresh re-resolves the process and fires onExit if a previously tracked
// process has gone away.
func (w *Watcher) refresh(ctx context.Context) {
	proc, err := findProcess(ctx, w.processName)

	w.mu.Lock()
	hadProc := w.proc != nil
	w.proc = proc
	if proc != nil {
		if createMs, cerr := proc.CreateTimeWithContext(ctx); cerr == nil {
			w.started = time.UnixMilli(createMs)
		} else {
			w.started = time.Time{}
		}
	} else {
		w.started = time.Time{}
	}
	w.mu.Unlock()

	if err != nil {
		w.log.Debug("process lookup failed", "process", w.processName, "error", err)
		return
	}

	if hadProc && proc == nil {
		w.log.Info("watched process exited", "process", w.processName)
		if w.onExit != nil {
			w.onExit()
		}
	}
}

// findProcess returns the first process whose name matches, or nil when
// not found. A lookup error is only returned when enumeration itself
// fails.
func findProcess(ctx context.Context, name string) (*process.Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range procs {
		pname, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if pname == name {
			return p, nil
		}
	}
	return nil, nil
}
