// Package engine implements the rate-decision and transition-control
// core: track-change detection, candidate-rate stability tracking,
// priority-ordered format resolution, adaptive polling and the
// termination cooldown guard.
//
// All mutable state is owned by a single Engine value and serialized
// behind one mutex. Timers and the background metadata query hand their
// results back through that mutex; nothing mutates state concurrently.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/morpheus1988wer/HertzBridge/internal/audiofile"
	"github.com/morpheus1988wer/HertzBridge/internal/conf"
	"github.com/morpheus1988wer/HertzBridge/internal/device"
	"github.com/morpheus1988wer/HertzBridge/internal/errors"
	"github.com/morpheus1988wer/HertzBridge/internal/events"
	"github.com/morpheus1988wer/HertzBridge/internal/logging"
	"github.com/morpheus1988wer/HertzBridge/internal/observability"
	"github.com/morpheus1988wer/HertzBridge/internal/player"
)

// ProcessInfo exposes the watched player process's start time, used to
// skip queries against a just-started process that may be a restart the
// engine itself caused.
type ProcessInfo interface {
	StartedAt() (time.Time, bool)
}

// Engine is the decision core. Create with New, wire collaborators, then
// Start. A stopped engine can be started again.
type Engine struct {
	settings  *conf.Settings
	bridge    player.MetadataProvider
	device    device.Controller
	inspector audiofile.Inspector
	status    *events.Bus
	metrics   *observability.Metrics
	procinfo  ProcessInfo
	log       *slog.Logger

	mu sync.Mutex

	// Transition state. Exactly one in-flight transition is tracked at a
	// time; a new track identity supersedes all of it.
	identity        string
	prevAlbum       string
	seenTrack       bool
	confirmed       float64
	albumRates      *gocache.Cache
	candidate       *candidateRate
	switchApplied   bool
	transitionStart time.Time

	// At most one transition timer (delay or stability wait) is alive.
	// generation increments on every cancellation; a callback armed for an
	// earlier generation finds the mismatch and bails, so a superseded
	// timer that already fired and is waiting on the mutex can never apply
	// the old track's format against the new transition.
	pendingActive bool
	pendingCancel func()
	generation    uint64

	// Status updates are queued under the mutex and dispatched after it is
	// released; a slow consumer must not stall the engine.
	pendingStatus *events.StatusUpdate

	override float64
	deviceID string

	guard terminationGuard
	sched pollScheduler

	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	kick    chan struct{}
	wg      sync.WaitGroup
}

// New creates an engine. bus and metrics may be nil.
func New(settings *conf.Settings, bridge player.MetadataProvider, ctrl device.Controller, inspector audiofile.Inspector, bus *events.Bus, metrics *observability.Metrics) *Engine {
	e := &Engine{
		settings:  settings,
		bridge:    bridge,
		device:    ctrl,
		inspector: inspector,
		status:    bus,
		metrics:   metrics,
		log:       logging.ForService("engine"),
		// Cleanup runs lazily on access; no janitor goroutine.
		albumRates: gocache.New(settings.Engine.AlbumMemoryTTL, 0),
		override:   settings.Engine.ManualRate,
		deviceID:   settings.Device.Name,
		kick:       make(chan struct{}, 1),
		ctx:        context.Background(),
	}
	e.guard.cooldown = settings.Engine.Cooldown
	e.sched.transition = settings.Engine.TransitionPoll
	e.sched.steady = settings.Engine.SteadyPoll
	e.sched.current = settings.Engine.SteadyPoll
	return e
}

// SetProcessInfo wires the player process watcher. Optional; without it
// the launch-grace check is skipped.
func (e *Engine) SetProcessInfo(p ProcessInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.procinfo = p
}

// Start launches the evaluation loop.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.Newf("engine already running").
			Component("engine").
			Category(errors.CategoryState).
			Build()
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.running = true
	e.sched.setSteady()
	e.wg.Add(1)
	go e.run()
	e.log.Info("engine started",
		"transition_poll", e.sched.transition.String(),
		"steady_poll", e.sched.steady.String())
	return nil
}

// Stop cancels the loop, any pending transition timer and waits for all
// engine goroutines to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cancelPendingLocked()
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.log.Info("engine stopped")
}

// Notify requests an out-of-band evaluation, e.g. on a player state-change
// push. Never blocks; polling alone remains sufficient for correctness.
func (e *Engine) Notify() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// SetManualOverride pins the target sample rate. A zero rate clears the
// pin. The current transition is re-opened so the override takes effect
// on the next evaluation.
func (e *Engine) SetManualOverride(rate float64) {
	e.mu.Lock()
	e.override = rate
	e.cancelPendingLocked()
	e.identity = ""
	e.switchApplied = false
	e.mu.Unlock()
	e.Notify()
}

// SelectDevice switches the engine to the given output device id or name.
// Empty selects the system default.
func (e *Engine) SelectDevice(id string) {
	e.mu.Lock()
	e.deviceID = id
	e.cancelPendingLocked()
	e.identity = ""
	e.switchApplied = false
	e.mu.Unlock()
	e.Notify()
}

// PlayerTerminated routes an explicit player exit signal to the
// termination guard.
func (e *Engine) PlayerTerminated() {
	e.mu.Lock()
	e.enterCooldownLocked("player terminated")
	update := e.takeStatusLocked()
	e.mu.Unlock()
	e.publish(update)
}

// run is the evaluation loop: an adaptive-interval timer plus the
// out-of-band kick channel, both converging on the same evaluation path.
func (e *Engine) run() {
	defer e.wg.Done()

	e.mu.Lock()
	interval := e.sched.interval(time.Now())
	e.mu.Unlock()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.kick:
		case <-timer.C:
		}

		e.evaluate()

		e.mu.Lock()
		interval = e.sched.interval(time.Now())
		e.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(interval)
	}
}

// evaluate performs one decision cycle: guard checks, a bounded metadata
// query off the state mutex, then transition handling under it.
func (e *Engine) evaluate() {
	now := time.Now()

	e.mu.Lock()
	if e.guard.suppressed(now) {
		e.mu.Unlock()
		return
	}
	procinfo := e.procinfo
	queryTimeout := e.settings.Player.QueryTimeout
	launchGrace := e.settings.Player.LaunchGrace
	e.mu.Unlock()

	// A just-started player may be a restart we indirectly caused;
	// leave it alone until it has settled.
	if procinfo != nil && launchGrace > 0 {
		if started, ok := procinfo.StartedAt(); ok && now.Sub(started) < launchGrace {
			e.log.Debug("skipping query, player recently started",
				"started_ago", now.Sub(started).String())
			return
		}
	}

	queryCtx, cancelQuery := context.WithTimeout(e.ctx, queryTimeout)
	start := time.Now()
	track, err := e.bridge.CurrentTrack(queryCtx)
	elapsed := time.Since(start)
	cancelQuery()

	if e.ctx.Err() != nil {
		return
	}

	if errors.Is(err, context.DeadlineExceeded) || elapsed > queryTimeout {
		// An unresponsive player is treated as dying, not as an error.
		e.mu.Lock()
		e.enterCooldownLocked("metadata query timeout")
		update := e.takeStatusLocked()
		e.mu.Unlock()
		e.publish(update)
		return
	}
	if err != nil {
		// Transient failure: log, treat as idle, retry next tick.
		e.log.Debug("metadata query failed", "error", err)
		track = nil
	}

	e.mu.Lock()
	e.handleTrackLocked(track, time.Now())
	update := e.takeStatusLocked()
	e.mu.Unlock()
	e.publish(update)
}

// cancelPendingLocked invalidates the in-flight transition timer, if any.
// Bumping the generation also invalidates a callback that has already
// fired and is blocked on the mutex.
func (e *Engine) cancelPendingLocked() {
	e.generation++
	if e.pendingCancel != nil {
		e.pendingCancel()
		e.pendingCancel = nil
	}
	e.pendingActive = false
}

// enterCooldownLocked is the feedback-loop brake. It synchronously stops
// all transition activity and suppresses queries and switches until the
// deadline so the engine cannot react to side effects of its own actions.
func (e *Engine) enterCooldownLocked(reason string) {
	e.cancelPendingLocked()
	e.identity = ""
	e.candidate = nil
	e.switchApplied = false
	e.transitionStart = time.Time{}
	e.sched.setSteady()
	e.guard.enter(time.Now())
	e.metrics.IncCooldownEntered()
	e.log.Info("entering cooldown",
		"reason", reason,
		"deadline", e.guard.deadline.Format(time.RFC3339))
	e.queueIdleLocked()
}

// queueIdleLocked stages an idle status for dispatch. The bus
// deduplicates, so repeated idle cycles stay quiet downstream.
func (e *Engine) queueIdleLocked() {
	dev, devFormat := e.deviceLabelsLocked()
	e.queueStatusLocked(events.StatusUpdate{
		Track:        "",
		TrackFormat:  "",
		Device:       dev,
		DeviceFormat: devFormat,
	})
}

// queueStatusLocked stages a status update, last write wins. The caller
// flushes it with takeStatusLocked/publish once the mutex is released.
func (e *Engine) queueStatusLocked(update events.StatusUpdate) {
	e.pendingStatus = &update
}

// takeStatusLocked removes and returns the staged status update, if any.
func (e *Engine) takeStatusLocked() *events.StatusUpdate {
	update := e.pendingStatus
	e.pendingStatus = nil
	return update
}

// publish dispatches a flushed status update to the bus. Must be called
// without the mutex held; consumers may block on broker I/O.
func (e *Engine) publish(update *events.StatusUpdate) {
	if update != nil {
		e.status.Publish(*update)
	}
}

// deviceLabelsLocked resolves display labels for the active device and
// its current format. Failures degrade to empty labels.
func (e *Engine) deviceLabelsLocked() (name, format string) {
	info, err := e.targetDeviceLocked()
	if err != nil || info == nil {
		return "", ""
	}
	name = info.Name
	if current, err := e.device.CurrentFormat(info.ID); err == nil && current != nil {
		format = current.String()
	}
	return name, format
}

// targetDeviceLocked resolves the selected output device, falling back to
// the system default when no selection is set.
func (e *Engine) targetDeviceLocked() (*device.Info, error) {
	if e.deviceID == "" {
		return e.device.DefaultOutputDevice()
	}
	devices, err := e.device.ListOutputDevices()
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].ID == e.deviceID || devices[i].Name == e.deviceID {
			return &devices[i], nil
		}
	}
	return nil, errors.Newf("selected output device not found: %s", e.deviceID).
		Component("engine").
		Category(errors.CategoryDevice).
		Context("device_id", e.deviceID).
		Build()
}
