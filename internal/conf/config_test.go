package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morpheus1988wer/HertzBridge/internal/errors"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Player.QueryTimeout = time.Second
	s.Engine = EngineSettings{
		TransitionPoll:    500 * time.Millisecond,
		SteadyPoll:        4 * time.Second,
		StabilityPeriod:   500 * time.Millisecond,
		StabilityAttempts: 30,
		RateEpsilon:       0.1,
		FallbackRate:      44100,
	}
	return s
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero transition poll", func(s *Settings) { s.Engine.TransitionPoll = 0 }},
		{"zero steady poll", func(s *Settings) { s.Engine.SteadyPoll = 0 }},
		{"zero stability attempts", func(s *Settings) { s.Engine.StabilityAttempts = 0 }},
		{"zero stability period", func(s *Settings) { s.Engine.StabilityPeriod = 0 }},
		{"zero rate epsilon", func(s *Settings) { s.Engine.RateEpsilon = 0 }},
		{"zero fallback rate", func(s *Settings) { s.Engine.FallbackRate = 0 }},
		{"negative manual rate", func(s *Settings) { s.Engine.ManualRate = -1 }},
		{"zero query timeout", func(s *Settings) { s.Player.QueryTimeout = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := validSettings()
			tc.mutate(s)
			err := ValidateSettings(s)
			require.Error(t, err)

			var enhanced *errors.EnhancedError
			require.ErrorAs(t, err, &enhanced)
			assert.Equal(t, errors.CategoryValidation, enhanced.Category)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	// Load touches the process-wide viper instance, so no t.Parallel.
	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, settings.Engine.TransitionPoll)
	assert.Equal(t, 4*time.Second, settings.Engine.SteadyPoll)
	assert.Equal(t, 500*time.Millisecond, settings.Engine.StabilityPeriod)
	assert.Equal(t, 500*time.Millisecond, settings.Engine.StabilityRequired)
	assert.Equal(t, 30, settings.Engine.StabilityAttempts)
	assert.Equal(t, 2*time.Second, settings.Engine.StaleTolerance)
	assert.InDelta(t, 0.1, settings.Engine.RateEpsilon, 0.0001)
	assert.Equal(t, 5*time.Second, settings.Engine.HintFastWindow)
	assert.Equal(t, 8*time.Second, settings.Engine.Cooldown)
	assert.InDelta(t, 44100.0, settings.Engine.FallbackRate, 0.01)
	assert.Equal(t, time.Second, settings.Player.QueryTimeout)
	assert.Equal(t, 5*time.Second, settings.Player.LaunchGrace)

	require.NoError(t, ValidateSettings(settings))
}

func TestSaveAsRoundTrip(t *testing.T) {
	settings, err := Load()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveAs(settings, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "engine:")
	assert.Contains(t, string(data), "fallbackrate:")
}
