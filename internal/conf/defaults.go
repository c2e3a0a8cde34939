// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "HertzBridge")
	viper.SetDefault("main.log.enabled", false)
	viper.SetDefault("main.log.path", "hertzbridge.log")
	viper.SetDefault("main.log.maxsize", 100)

	viper.SetDefault("player.command", "")
	viper.SetDefault("player.processname", "Music")
	viper.SetDefault("player.querytimeout", "1s")
	viper.SetDefault("player.launchgrace", "5s")

	viper.SetDefault("device.name", "")

	viper.SetDefault("hints.enabled", true)
	viper.SetDefault("hints.command", "")
	viper.SetDefault("hints.pattern", `sample rate[:=]?\s*([0-9]+(?:\.[0-9]+)?)`)

	viper.SetDefault("engine.manualrate", 0.0)
	viper.SetDefault("engine.transitionpoll", "500ms")
	viper.SetDefault("engine.steadypoll", "4s")
	viper.SetDefault("engine.localdelay", "200ms")
	viper.SetDefault("engine.trusteddelay", "100ms")
	viper.SetDefault("engine.stabilityperiod", "500ms")
	viper.SetDefault("engine.stabilityrequired", "500ms")
	viper.SetDefault("engine.stabilityattempts", 30)
	viper.SetDefault("engine.staletolerance", "2s")
	viper.SetDefault("engine.rateepsilon", 0.1)
	viper.SetDefault("engine.hintfastwindow", "5s")
	viper.SetDefault("engine.cooldown", "8s")
	viper.SetDefault("engine.fallbackrate", 44100.0)
	viper.SetDefault("engine.albummemoryttl", "30m")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "hertzbridge/status")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
}
