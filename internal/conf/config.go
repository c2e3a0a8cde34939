// config.go: settings struct and functions to load and save the HertzBridge configuration.
package conf

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig contains settings for the rotating file log.
type LogConfig struct {
	Enabled bool   // true to enable file logging
	Path    string // path to log file
	MaxSize int    // maximum log file size in MB before rotation
}

// MainSettings contains top-level application settings.
type MainSettings struct {
	Name string    // instance name, used as client id for integrations
	Log  LogConfig // file log settings
}

// PlayerSettings configures the media player metadata bridge.
type PlayerSettings struct {
	Command      string        // command executed to query the current track, must print JSON on stdout
	ProcessName  string        // player process name, watched for termination
	QueryTimeout time.Duration // metadata queries slower than this are treated as a dying player
	LaunchGrace  time.Duration // queries are skipped while the player process is younger than this
}

// DeviceSettings configures output device selection.
type DeviceSettings struct {
	Name string // output device name or id, empty selects the system default
}

// HintSettings configures the diagnostic log hint stream.
type HintSettings struct {
	Enabled bool   // true to run the hint stream command
	Command string // long-running command whose stdout is scanned for rate hints
	Pattern string // regexp with one capture group matching the announced sample rate
}

// EngineSettings holds the timing and tolerance parameters of the decision
// engine. The defaults are empirically chosen, not derived; they are exposed
// here so deployments can tune them.
type EngineSettings struct {
	ManualRate        float64       // pinned sample rate in Hz, 0 disables the override
	TransitionPoll    time.Duration // poll interval while a transition is resolving
	SteadyPoll        time.Duration // poll interval during steady playback
	LocalDelay        time.Duration // delay before switching for a local file
	TrustedDelay      time.Duration // delay before switching on a trusted embedded rate
	StabilityPeriod   time.Duration // interval between stability checks
	StabilityRequired time.Duration // how long a candidate rate must hold before it is trusted
	StabilityAttempts int           // stability checks before the best-guess fallback fires
	StaleTolerance    time.Duration // hints older than transition start minus this are dropped
	RateEpsilon       float64       // rates closer than this are considered equal, in Hz
	HintFastWindow    time.Duration // fast polling window after an accepted hint
	Cooldown          time.Duration // query suppression window after player termination
	FallbackRate      float64       // rate used when no signal resolves
	AlbumMemoryTTL    time.Duration // how long confirmed album rates are remembered
}

// TelemetrySettings contains settings for the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to enable Prometheus telemetry endpoint
	Listen  string // listen address and port of the telemetry endpoint
}

// MQTTSettings contains settings for MQTT status publishing.
type MQTTSettings struct {
	Enabled  bool   // true to publish status updates to MQTT
	Broker   string // MQTT broker URL
	Topic    string // topic status updates are published to
	Username string
	Password string
}

// Settings is the root configuration struct.
type Settings struct {
	Debug bool // true to enable debug output

	Main      MainSettings
	Player    PlayerSettings
	Device    DeviceSettings
	Hints     HintSettings
	Engine    EngineSettings
	Telemetry TelemetrySettings
	MQTT      MQTTSettings
}

// Load reads the configuration file and environment into a Settings struct.
// A missing configuration file is not an error, defaults apply.
func Load() (*Settings, error) {
	settings := &Settings{}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return nil, err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file found, defaults are fine.
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// SyncViper copies viper values back into the settings struct after flag
// parsing so that command line arguments take precedence over the file.
func SyncViper(settings *Settings) {
	if err := viper.Unmarshal(settings); err != nil {
		log.Printf("error syncing flags to settings: %v", err)
	}
}

// SaveAs writes the current settings to the given path as YAML.
func SaveAs(settings *Settings, path string) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", path, err)
	}
	return nil
}

// GetDefaultConfigPaths returns the list of directories searched for the
// configuration file, in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error resolving home directory: %w", err)
	}

	return []string{
		".",
		filepath.Join(homeDir, ".config", "hertzbridge"),
		"/etc/hertzbridge",
	}, nil
}
