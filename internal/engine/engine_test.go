package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/morpheus1988wer/HertzBridge/internal/audiofile"
	"github.com/morpheus1988wer/HertzBridge/internal/conf"
	"github.com/morpheus1988wer/HertzBridge/internal/device"
	"github.com/morpheus1988wer/HertzBridge/internal/events"
	"github.com/morpheus1988wer/HertzBridge/internal/player"
)

// testSettings returns settings with timings scaled down so transitions
// resolve within milliseconds.
func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Player.QueryTimeout = 250 * time.Millisecond
	s.Engine = conf.EngineSettings{
		TransitionPoll:    10 * time.Millisecond,
		SteadyPoll:        50 * time.Millisecond,
		LocalDelay:        5 * time.Millisecond,
		TrustedDelay:      2 * time.Millisecond,
		StabilityPeriod:   5 * time.Millisecond,
		StabilityRequired: 1 * time.Millisecond,
		StabilityAttempts: 4,
		StaleTolerance:    2 * time.Second,
		RateEpsilon:       0.1,
		HintFastWindow:    100 * time.Millisecond,
		Cooldown:          250 * time.Millisecond,
		FallbackRate:      44100,
		AlbumMemoryTTL:    time.Minute,
	}
	return s
}

type fakeInspector struct {
	info *audiofile.Info
	err  error
}

func (f *fakeInspector) Inspect(path string) (*audiofile.Info, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.info == nil {
		return &audiofile.Info{SampleRate: 44100, BitDepth: 16, Channels: 2}, nil
	}
	return f.info, nil
}

// observe feeds one track query result through the detector and flushes
// any staged status, the way the evaluation loop does.
func observe(e *Engine, track *player.Track) {
	e.mu.Lock()
	e.handleTrackLocked(track, time.Now())
	update := e.takeStatusLocked()
	e.mu.Unlock()
	e.publish(update)
}

// drain cancels any in-flight transition timer and waits for engine
// goroutines so tests do not leak them.
func drain(e *Engine) {
	observe(e, nil)
	e.wg.Wait()
}

func switchApplied(e *Engine) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.switchApplied
}

func newTestEngine(t *testing.T, mock *device.MockController, inspector audiofile.Inspector) (*Engine, *player.ScriptedProvider) {
	t.Helper()
	provider := player.NewScriptedProvider()
	if inspector == nil {
		inspector = &fakeInspector{}
	}
	e := New(testSettings(), provider, mock, inspector, events.NewBus(nil), nil)
	t.Cleanup(func() { drain(e) })
	return e, provider
}

func TestSwitchIdempotentPerTransition(t *testing.T) {
	mock := device.NewMockController(device.Format{SampleRate: 44100})
	inspector := &fakeInspector{info: &audiofile.Info{SampleRate: 96000, BitDepth: 24, Channels: 2}}
	e, _ := newTestEngine(t, mock, inspector)

	track := &player.Track{Name: "Aja", Artist: "Steely Dan", Location: "/music/aja.flac"}

	observe(e, track)
	require.Eventually(t, func() bool { return mock.Writes() == 1 }, 200*time.Millisecond, 2*time.Millisecond,
		"local track should trigger exactly one write")

	// Re-evaluating the same transition must not issue another write.
	observe(e, track)
	observe(e, track)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, mock.Writes(), "same transition must never write twice")

	last := mock.LastWrite()
	require.NotNil(t, last)
	assert.InDelta(t, 96000.0, last.SampleRate, 0.01)
	assert.Equal(t, 24, last.BitDepth)
}

func TestManualOverrideBeatsAllSignals(t *testing.T) {
	mock := device.NewMockController(device.Format{SampleRate: 44100})
	inspector := &fakeInspector{info: &audiofile.Info{SampleRate: 44100, BitDepth: 16, Channels: 2}}
	e, _ := newTestEngine(t, mock, inspector)

	e.SetManualOverride(192000)
	e.HandleRateHint(96000, time.Now())

	local := &player.Track{Name: "Song", Artist: "Artist", Location: "/music/song.wav", SampleRate: 48000}

	e.mu.Lock()
	format := e.resolveFormatLocked(local)
	e.mu.Unlock()

	assert.InDelta(t, 192000.0, format.SampleRate, 0.01, "override must win over every other signal")
	assert.Equal(t, 0, format.BitDepth, "override leaves bit depth to the hardware")
}

func TestLocalFilePrecedenceOverCandidate(t *testing.T) {
	mock := device.NewMockController(device.Format{SampleRate: 44100})
	inspector := &fakeInspector{info: &audiofile.Info{SampleRate: 96000, BitDepth: 24, Channels: 2}}
	e, _ := newTestEngine(t, mock, inspector)

	// A stale candidate from the previous track must not leak in.
	e.HandleRateHint(192000, time.Now())

	local := &player.Track{Name: "Song", Artist: "Artist", Location: "/music/song.flac"}

	e.mu.Lock()
	format := e.resolveFormatLocked(local)
	e.mu.Unlock()

	assert.InDelta(t, 96000.0, format.SampleRate, 0.01)
	assert.Equal(t, 24, format.BitDepth)
}

func TestStaleHintRejected(t *testing.T) {
	mock := device.NewMockController(device.Format{SampleRate: 44100})
	e, _ := newTestEngine(t, mock, nil)

	stream := &player.Track{Name: "Song", Artist: "Artist"}
	observe(e, stream)

	// Timestamped well before the transition start: belongs to the
	// previous track, must never become the candidate.
	e.HandleRateHint(48000, time.Now().Add(-3*time.Second))
	_, _, ok := e.CandidateRate()
	assert.False(t, ok, "stale hint must not be accepted")

	// A fresh hint is accepted.
	observe(e, nil) // settle the pending wait first
	e.HandleRateHint(48000, time.Now())
	rate, _, ok := e.CandidateRate()
	require.True(t, ok)
	assert.InDelta(t, 48000.0, rate, 0.01)
}

func TestCandidateAgeOnlyResetsOnValueChange(t *testing.T) {
	mock := device.NewMockController(device.Format{SampleRate: 44100})
	e, _ := newTestEngine(t, mock, nil)

	e.HandleRateHint(96000, time.Now())
	time.Sleep(10 * time.Millisecond)
	e.HandleRateHint(96000.05, time.Now()) // within epsilon, ages

	_, age, ok := e.CandidateRate()
	require.True(t, ok)
	assert.GreaterOrEqual(t, age, 10*time.Millisecond, "matching hint must not reset the age")

	e.HandleRateHint(192000, time.Now()) // new value, fresh candidate
	rate, age, ok := e.CandidateRate()
	require.True(t, ok)
	assert.InDelta(t, 192000.0, rate, 0.01)
	assert.Less(t, age, 10*time.Millisecond, "value change must reset the age")
}

func TestAlbumContinuitySkipsStabilityWait(t *testing.T) {
	mock := device.NewMockController(device.Format{SampleRate: 44100})
	e, _ := newTestEngine(t, mock, nil)

	trackA := &player.Track{Name: "Track One", Artist: "Artist", Album: "X"}
	observe(e, trackA)
	e.HandleRateHint(48000, time.Now())

	require.Eventually(t, func() bool { return mock.Writes() == 1 }, 200*time.Millisecond, 2*time.Millisecond)
	require.InDelta(t, 48000.0, mock.LastWrite().SampleRate, 0.01)

	// Next track on the same album, no embedded rate: the confirmed rate
	// is seeded directly, no stability wait.
	trackB := &player.Track{Name: "Track Two", Artist: "Artist", Album: "X"}
	observe(e, trackB)

	e.mu.Lock()
	require.NotNil(t, e.candidate, "confirmed album rate must seed the candidate")
	assert.InDelta(t, 48000.0, e.candidate.value, 0.01)
	e.mu.Unlock()

	require.Eventually(t, func() bool { return switchApplied(e) }, 200*time.Millisecond, 2*time.Millisecond)
	assert.Equal(t, 1, mock.Writes(), "device already at 48000, no redundant write")
}

func TestAlbumChangeClearsConfirmedRate(t *testing.T) {
	mock := device.NewMockController(device.Format{SampleRate: 44100})
	e, _ := newTestEngine(t, mock, nil)

	trackA := &player.Track{Name: "One", Artist: "Artist", Album: "X"}
	observe(e, trackA)
	e.HandleRateHint(96000, time.Now())
	require.Eventually(t, func() bool { return switchApplied(e) }, 200*time.Millisecond, 2*time.Millisecond)

	// Different album: the sticky value must be gone and the slow path
	// taken.
	trackB := &player.Track{Name: "Two", Artist: "Artist", Album: "Y"}
	observe(e, trackB)

	e.mu.Lock()
	confirmed := e.confirmed
	pending := e.pendingActive
	e.mu.Unlock()
	assert.Zero(t, confirmed, "confirmed rate is cleared on album boundary")
	assert.True(t, pending, "stream without signals enters the stability wait")
}

func TestCooldownSuppressesQueries(t *testing.T) {
	mock := device.NewMockController(device.Format{SampleRate: 44100})
	e, provider := newTestEngine(t, mock, nil)
	provider.SetTrack(&player.Track{Name: "Song", Artist: "Artist"})

	e.PlayerTerminated()

	e.evaluate()
	assert.Equal(t, 0, provider.Queries(), "queries suppressed during cooldown")

	// After the deadline the guard lazily re-activates.
	time.Sleep(300 * time.Millisecond)
	e.evaluate()
	assert.Equal(t, 1, provider.Queries(), "queries resume after the cooldown deadline")
}

func TestQueryTimeoutEntersCooldown(t *testing.T) {
	mock := device.NewMockController(device.Format{SampleRate: 44100})
	e, provider := newTestEngine(t, mock, nil)
	provider.SetTrack(&player.Track{Name: "Song", Artist: "Artist"})
	provider.SetDelay(400 * time.Millisecond) // above the 250ms threshold

	e.evaluate()

	e.mu.Lock()
	inCooldown := e.guard.inCooldown
	e.mu.Unlock()
	assert.True(t, inCooldown, "an unresponsive player routes to the guard")
	assert.Equal(t, 0, mock.Writes())
}

func TestBestGuessCeiling(t *testing.T) {
	mock := device.NewMockController(device.Format{SampleRate: 96000})
	e, _ := newTestEngine(t, mock, nil)

	// Stream with no signals at all: the wait must still resolve within
	// its attempt budget and switch exactly once, to the fallback.
	observe(e, &player.Track{Name: "Song", Artist: "Artist"})

	require.Eventually(t, func() bool { return mock.Writes() == 1 }, 500*time.Millisecond, 2*time.Millisecond)
	assert.InDelta(t, 44100.0, mock.LastWrite().SampleRate, 0.01)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, mock.Writes(), "best guess fires exactly once")
}

func TestIdleClearsTransitionState(t *testing.T) {
	mock := device.NewMockController(device.Format{SampleRate: 44100})
	bus := events.NewBus(nil)

	var updatesMu sync.Mutex
	var updates []events.StatusUpdate
	bus.Subscribe(func(u events.StatusUpdate) {
		updatesMu.Lock()
		updates = append(updates, u)
		updatesMu.Unlock()
	})
	delivered := func() int {
		updatesMu.Lock()
		defer updatesMu.Unlock()
		return len(updates)
	}

	provider := player.NewScriptedProvider()
	e := New(testSettings(), provider, mock, &fakeInspector{}, bus, nil)
	t.Cleanup(func() { drain(e) })

	observe(e, &player.Track{Name: "Song", Artist: "Artist", SampleRate: 48000})
	require.Eventually(t, func() bool { return delivered() == 1 }, 200*time.Millisecond, 2*time.Millisecond)

	observe(e, nil)

	e.mu.Lock()
	assert.Empty(t, e.identity)
	assert.Nil(t, e.candidate)
	assert.False(t, e.pendingActive)
	e.mu.Unlock()

	require.Eventually(t, func() bool { return delivered() == 2 }, 200*time.Millisecond, 2*time.Millisecond)
	updatesMu.Lock()
	defer updatesMu.Unlock()
	assert.NotEmpty(t, updates[0].Track, "playing status first")
	assert.Empty(t, updates[1].Track, "idle status is reported")
}

func TestLateHintReopensTransition(t *testing.T) {
	mock := device.NewMockController(device.Format{SampleRate: 44100})
	e, _ := newTestEngine(t, mock, nil)

	track := &player.Track{Name: "Song", Artist: "Artist", SampleRate: 48000}
	observe(e, track)
	require.Eventually(t, func() bool { return switchApplied(e) }, 200*time.Millisecond, 2*time.Millisecond)

	// A hint arriving after the transition settled re-opens the decision
	// on the next evaluation of the same track.
	e.HandleRateHint(96000, time.Now())
	observe(e, track)

	e.mu.Lock()
	applied := e.switchApplied
	pending := e.pendingActive
	e.mu.Unlock()
	assert.False(t, applied, "late hint restarts the transition")
	assert.True(t, pending, "a fresh wait is armed")
}

func TestSupersededTimerDoesNotApplyOldFormat(t *testing.T) {
	mock := device.NewMockController(device.Format{SampleRate: 44100})
	e, _ := newTestEngine(t, mock, nil)

	trackA := &player.Track{Name: "First", Artist: "Artist", SampleRate: 48000}
	trackB := &player.Track{Name: "Second", Artist: "Artist", SampleRate: 96000}

	// Hold the mutex past track A's switch delay so its timer fires and
	// queues behind the lock, then supersede it with track B before
	// releasing. A's callback must find itself outdated and bail.
	e.mu.Lock()
	e.handleTrackLocked(trackA, time.Now())
	time.Sleep(20 * time.Millisecond) // well past the 2ms trusted delay
	e.handleTrackLocked(trackB, time.Now())
	e.mu.Unlock()

	require.Eventually(t, func() bool { return switchApplied(e) }, 200*time.Millisecond, 2*time.Millisecond)

	last := mock.LastWrite()
	require.NotNil(t, last)
	assert.InDelta(t, 96000.0, last.SampleRate, 0.01, "only the superseding track's format is applied")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, mock.Writes(), "the stale timer must not issue a second write")
}

func TestSupersededStabilityWaitDoesNotApply(t *testing.T) {
	mock := device.NewMockController(device.Format{SampleRate: 44100})
	e, _ := newTestEngine(t, mock, nil)

	// Track A enters the stability wait, then the mutex is held long
	// enough for the loop to queue behind the lock while track B
	// supersedes the transition.
	observe(e, &player.Track{Name: "First", Artist: "Artist"})

	e.mu.Lock()
	time.Sleep(60 * time.Millisecond) // several 5ms stability ticks
	e.handleTrackLocked(&player.Track{Name: "Second", Artist: "Artist", SampleRate: 96000}, time.Now())
	e.mu.Unlock()

	require.Eventually(t, func() bool { return switchApplied(e) }, 200*time.Millisecond, 2*time.Millisecond)

	last := mock.LastWrite()
	require.NotNil(t, last)
	assert.InDelta(t, 96000.0, last.SampleRate, 0.01, "the stale wait must not fall back over the superseding track")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, mock.Writes())
}

func TestSlowStatusConsumerDoesNotBlockEngine(t *testing.T) {
	mock := device.NewMockController(device.Format{SampleRate: 44100})
	bus := events.NewBus(nil)

	entered := make(chan struct{}, 4)
	release := make(chan struct{})
	bus.Subscribe(func(events.StatusUpdate) {
		entered <- struct{}{}
		<-release
	})

	provider := player.NewScriptedProvider()
	e := New(testSettings(), provider, mock, &fakeInspector{}, bus, nil)
	defer drain(e)
	defer close(release)

	observe(e, &player.Track{Name: "Song", Artist: "Artist", SampleRate: 48000})

	// The switch timer fires and the consumer blocks inside the dispatch.
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("status update never dispatched")
	}

	// While the consumer is stuck, the engine mutex must be free.
	locked := make(chan struct{})
	go func() {
		e.mu.Lock()
		e.mu.Unlock() //nolint:staticcheck
		close(locked)
	}()
	select {
	case <-locked:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("engine mutex held during status dispatch")
	}
}

func TestEngineLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	mock := device.NewMockController(device.Format{SampleRate: 44100})
	provider := player.NewScriptedProvider()
	e := New(testSettings(), provider, mock, &fakeInspector{}, events.NewBus(nil), nil)

	require.NoError(t, e.Start())
	assert.Error(t, e.Start(), "double start is rejected")

	e.Notify()
	require.Eventually(t, func() bool { return provider.Queries() > 0 }, 500*time.Millisecond, 5*time.Millisecond)

	e.Stop()
	e.Stop() // idempotent
}
