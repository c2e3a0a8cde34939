package engine

import (
	"math"
	"time"

	"github.com/morpheus1988wer/HertzBridge/internal/device"
	"github.com/morpheus1988wer/HertzBridge/internal/events"
	"github.com/morpheus1988wer/HertzBridge/internal/player"
)

// defaultLocalBitDepth is assumed when a local file's header does not
// state a depth.
const defaultLocalBitDepth = 16

// resolveFormatLocked computes the target format for the track by strict
// priority; the first matching rule wins. Bit depth is only constrained
// for local files, streams leave the device's depth alone.
func (e *Engine) resolveFormatLocked(track *player.Track) device.Format {
	// 1. Manually pinned rate beats everything.
	if e.override > 0 {
		return device.Format{SampleRate: e.override}
	}

	// 2. Local file's inspected format.
	if track.IsLocal() {
		if info, err := e.inspector.Inspect(track.LocalPath()); err == nil {
			depth := info.BitDepth
			if depth == 0 {
				depth = defaultLocalBitDepth
			}
			return device.Format{SampleRate: info.SampleRate, BitDepth: depth}
		} else {
			e.log.Warn("local file inspection failed, falling through",
				"path", track.Location,
				"error", err)
		}
	}

	// 3. Player-reported embedded rate.
	if track.SampleRate > 0 {
		return device.Format{SampleRate: track.SampleRate}
	}

	// 4. Aggregator's accepted candidate.
	if e.candidate != nil {
		return device.Format{SampleRate: e.candidate.value}
	}

	// 5. Fallback.
	return device.Format{SampleRate: e.settings.Engine.FallbackRate}
}

// applySwitchLocked issues at most one hardware write for the current
// transition. The write is best-effort: a hardware rejection is logged
// and the cycle completes normally, it is never retried in a loop.
func (e *Engine) applySwitchLocked(track *player.Track) {
	if e.switchApplied {
		return
	}
	if e.guard.suppressed(time.Now()) {
		return
	}

	target := e.resolveFormatLocked(track)

	info, err := e.targetDeviceLocked()
	if err != nil || info == nil {
		// Device not found is transient; the next cycle re-evaluates.
		e.log.Warn("no output device available", "error", err)
		return
	}

	current, err := e.device.CurrentFormat(info.ID)
	if err != nil {
		e.log.Warn("failed to read current device format",
			"device", info.Name,
			"error", err)
	}

	rateChanged := current == nil ||
		math.Abs(current.SampleRate-target.SampleRate) > e.settings.Engine.RateEpsilon
	depthChanged := target.BitDepth > 0 &&
		current != nil &&
		current.BitDepth != target.BitDepth

	if rateChanged || depthChanged {
		if err := e.device.SetFormat(info.ID, target); err != nil {
			e.metrics.IncSwitchFailure()
			e.log.Warn("device rejected format, keeping current",
				"device", info.Name,
				"target", target.String(),
				"error", err)
		} else {
			e.metrics.IncSwitchApplied()
			e.metrics.SetDeviceSampleRate(target.SampleRate)
			e.log.Info("device format switched",
				"device", info.Name,
				"target", target.String(),
				"track", track.String())
		}
	} else {
		e.log.Debug("device already at target format",
			"device", info.Name,
			"target", target.String())
	}

	e.switchApplied = true
	// The candidate has served its purpose; only a late hint re-creates
	// one, which re-opens the decision.
	e.candidate = nil

	if !track.IsLocal() {
		e.confirmed = target.SampleRate
		if track.Album != "" {
			e.albumRates.SetDefault(track.Album, target.SampleRate)
		}
	}

	e.sched.setSteady()
	e.queueOutcomeLocked(track, target, info)
}

// queueOutcomeLocked stages the transition outcome for dispatch once the
// mutex is released. The bus suppresses consecutive duplicates.
func (e *Engine) queueOutcomeLocked(track *player.Track, target device.Format, info *device.Info) {
	deviceFormat := ""
	if current, err := e.device.CurrentFormat(info.ID); err == nil && current != nil {
		deviceFormat = current.String()
	}
	e.queueStatusLocked(events.StatusUpdate{
		Track:        track.String(),
		TrackFormat:  target.String(),
		Device:       info.Name,
		DeviceFormat: deviceFormat,
	})
}
