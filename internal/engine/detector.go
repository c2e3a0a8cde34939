package engine

import (
	"time"

	"github.com/morpheus1988wer/HertzBridge/internal/player"
)

// handleTrackLocked classifies the latest track query result as silence,
// a new transition or continuation of the current one, and starts the
// matching resolution path.
func (e *Engine) handleTrackLocked(track *player.Track, now time.Time) {
	if track == nil {
		if e.identity != "" || e.pendingActive {
			e.cancelPendingLocked()
			e.identity = ""
			e.candidate = nil
			e.switchApplied = false
			e.transitionStart = time.Time{}
			e.prevAlbum = ""
			e.sched.setSteady()
			e.log.Debug("playback idle, transition state cleared")
			e.queueIdleLocked()
		}
		return
	}

	id := track.Identity()

	// A candidate with no timer running means a hint arrived after the
	// transition had already settled; the decision must be re-opened.
	lateHint := e.candidate != nil && !e.pendingActive
	if id == e.identity && !lateHint {
		// Continuation: whatever wait is in flight keeps running. The
		// one exception is a transition that never completed because the
		// device was unavailable; re-arm the switch so it is retried.
		if !e.switchApplied && !e.pendingActive {
			e.scheduleSwitchLocked(track, e.settings.Engine.TrustedDelay)
		}
		return
	}

	sameAlbum := e.seenTrack &&
		e.prevAlbum != "" &&
		track.Album != "" &&
		track.Album == e.prevAlbum

	// Hints often precede the metadata flip. A candidate still within the
	// stale tolerance carries over into the new transition; anything older
	// belongs to the previous track.
	keep := e.candidate
	if keep != nil && now.Sub(keep.firstSeen) > e.settings.Engine.StaleTolerance {
		keep = nil
	}

	e.cancelPendingLocked()
	e.identity = id
	e.prevAlbum = track.Album
	e.seenTrack = true
	e.switchApplied = false
	e.candidate = keep
	e.transitionStart = now
	e.sched.setFast()

	if !sameAlbum {
		// The sticky rate belongs to the previous album run.
		e.confirmed = 0
	}

	e.log.Debug("transition started",
		"track", track.String(),
		"album", track.Album,
		"same_album", sameAlbum,
		"local", track.IsLocal(),
		"reported_rate", track.SampleRate)

	switch {
	case track.IsLocal():
		// Local metadata is read synchronously, no stability wait needed.
		e.scheduleSwitchLocked(track, e.settings.Engine.LocalDelay)

	case track.SampleRate > 0:
		// Player-reported embedded rate is immediately trustworthy.
		e.scheduleSwitchLocked(track, e.settings.Engine.TrustedDelay)

	case sameAlbum && e.albumRateLocked(track.Album) > 0:
		// Continuity fast-path: reuse the rate confirmed earlier in this
		// album run instead of waiting for hints again.
		rate := e.albumRateLocked(track.Album)
		e.candidate = &candidateRate{value: rate, firstSeen: now}
		e.scheduleSwitchLocked(track, e.settings.Engine.TrustedDelay)

	default:
		e.confirmed = 0
		e.startStabilityWaitLocked(track)
	}
}

// albumRateLocked returns the confirmed rate for the album, preferring
// the sticky in-run value and falling back to the TTL album memory.
func (e *Engine) albumRateLocked(album string) float64 {
	if e.confirmed > 0 {
		return e.confirmed
	}
	if album == "" {
		return 0
	}
	if v, ok := e.albumRates.Get(album); ok {
		if rate, ok := v.(float64); ok {
			return rate
		}
	}
	return 0
}

// scheduleSwitchLocked arms the single transition delay timer. The switch
// fires on the engine's serialized path; a superseding transition cancels
// it. The captured generation guards against a callback that fired before
// the cancellation but acquires the mutex after it.
func (e *Engine) scheduleSwitchLocked(track *player.Track, delay time.Duration) {
	e.pendingActive = true
	gen := e.generation
	timer := time.AfterFunc(delay, func() {
		e.mu.Lock()
		if gen != e.generation || !e.pendingActive {
			// Superseded between firing and acquiring the lock.
			e.mu.Unlock()
			return
		}
		e.pendingActive = false
		e.pendingCancel = nil
		e.applySwitchLocked(track)
		update := e.takeStatusLocked()
		e.mu.Unlock()
		e.publish(update)
	})
	e.pendingCancel = func() { timer.Stop() }
}
