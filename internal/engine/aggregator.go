package engine

import (
	"math"
	"time"

	"github.com/morpheus1988wer/HertzBridge/internal/player"
)

// candidateRate is a rate being evaluated for stability. firstSeen only
// resets when the value changes; matching hints let the candidate age.
type candidateRate struct {
	value     float64
	firstSeen time.Time
}

// HandleRateHint feeds one timestamped diagnostic hint into the
// aggregator. Stale and cooldown-window hints are filtered silently.
func (e *Engine) HandleRateHint(rate float64, at time.Time) {
	if rate <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if e.guard.suppressed(now) {
		// Hints during cooldown are likely echoes of our own actions.
		e.log.Debug("dropping hint during cooldown", "rate", rate)
		return
	}

	// A hint lagging more than the tolerance behind the observed
	// transition refers to the previous track.
	if !e.transitionStart.IsZero() && at.Before(e.transitionStart.Add(-e.settings.Engine.StaleTolerance)) {
		e.metrics.IncHintStale()
		e.log.Debug("dropping stale hint",
			"rate", rate,
			"hint_at", at.Format(time.RFC3339Nano),
			"transition_start", e.transitionStart.Format(time.RFC3339Nano))
		return
	}

	if e.candidate != nil && math.Abs(e.candidate.value-rate) <= e.settings.Engine.RateEpsilon {
		// Same value within tolerance: the candidate ages, firstSeen
		// stays put.
	} else {
		e.candidate = &candidateRate{value: rate, firstSeen: now}
	}
	e.metrics.IncHintAccepted()

	// An incoming hint implies the player state is actively changing and
	// the notification path may be unreliable; poll fast for a while.
	e.sched.nudge(now, e.settings.Engine.HintFastWindow)
	e.Notify()
}

// CandidateRate returns the current candidate value and its age, or ok
// false when no candidate is tracked.
func (e *Engine) CandidateRate() (rate float64, age time.Duration, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.candidate == nil {
		return 0, 0, false
	}
	return e.candidate.value, time.Since(e.candidate.firstSeen), true
}

// startStabilityWaitLocked runs the bounded polling loop that waits for
// the candidate rate to persist. It resolves as soon as the candidate's
// age reaches the required duration, and unconditionally once the attempt
// budget is exhausted: audio must resume within a hard ceiling even
// without a stable signal.
func (e *Engine) startStabilityWaitLocked(track *player.Track) {
	stop := make(chan struct{})
	e.pendingActive = true
	e.pendingCancel = func() { close(stop) }

	e.wg.Add(1)
	go e.stabilityLoop(track, stop, e.generation)
}

func (e *Engine) stabilityLoop(track *player.Track, stop <-chan struct{}, gen uint64) {
	defer e.wg.Done()

	period := e.settings.Engine.StabilityPeriod
	required := e.settings.Engine.StabilityRequired
	attempts := e.settings.Engine.StabilityAttempts

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for attempt := 0; attempt < attempts; attempt++ {
		select {
		case <-stop:
			return
		case <-e.ctx.Done():
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		if gen != e.generation || !e.pendingActive {
			// Superseded by a newer transition while waiting on the lock.
			e.mu.Unlock()
			return
		}
		if e.candidate != nil && time.Since(e.candidate.firstSeen) >= required {
			e.pendingActive = false
			e.pendingCancel = nil
			e.log.Debug("candidate rate stabilized",
				"rate", e.candidate.value,
				"attempts", attempt+1)
			e.applySwitchLocked(track)
			update := e.takeStatusLocked()
			e.mu.Unlock()
			e.publish(update)
			return
		}
		e.mu.Unlock()
	}

	// Attempt budget exhausted: best guess over indefinite silence.
	e.mu.Lock()
	if gen != e.generation || !e.pendingActive {
		e.mu.Unlock()
		return
	}
	e.pendingActive = false
	e.pendingCancel = nil
	e.metrics.IncBestGuessFallback()
	e.log.Info("stability wait exhausted, switching on best guess",
		"track", track.String())
	e.applySwitchLocked(track)
	update := e.takeStatusLocked()
	e.mu.Unlock()
	e.publish(update)
}
