package loghints

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRate(t *testing.T) {
	t.Parallel()

	re := regexp.MustCompile(`sample rate:?\s*([0-9.]+)`)

	tests := []struct {
		name string
		line string
		want float64
		ok   bool
	}{
		{"plain hz", "2026-08-31 output sample rate: 44100", 44100, true},
		{"high rate", "negotiated sample rate 192000 with device", 192000, true},
		{"khz form", "stream sample rate: 44.1 kHz", 44100, true},
		{"fractional khz", "sample rate: 88.2", 88200, true},
		{"no match", "buffer underrun detected", 0, false},
		{"garbage capture", "sample rate: ...", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseRate(re, tc.line)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.want, got, 0.01)
			}
		})
	}
}

func TestParseRateRequiresCaptureGroup(t *testing.T) {
	t.Parallel()

	re := regexp.MustCompile(`sample rate`)
	_, ok := ParseRate(re, "sample rate: 44100")
	assert.False(t, ok, "a pattern without a capture group yields no hint")
}

func TestStreamMonitorForwardsHints(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var hints []Hint
	m, err := NewStreamMonitor(
		`printf 'starting up\nsample rate: 96000\nsample rate: 48000\n'`,
		`sample rate:\s*([0-9.]+)`,
		func(h Hint) {
			mu.Lock()
			hints = append(hints, h)
			mu.Unlock()
		},
	)
	require.NoError(t, err)

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(hints) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.InDelta(t, 96000.0, hints[0].Rate, 0.01)
	assert.InDelta(t, 48000.0, hints[1].Rate, 0.01)
	assert.WithinDuration(t, time.Now(), hints[0].At, 2*time.Second)
}

func TestStreamMonitorInvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := NewStreamMonitor("true", `([`, func(Hint) {})
	require.Error(t, err)
}

func TestStreamMonitorDoubleStart(t *testing.T) {
	t.Parallel()

	m, err := NewStreamMonitor("sleep 5", `([0-9]+)`, func(Hint) {})
	require.NoError(t, err)

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))
	m.Stop()
}
