// Package realtime implements the command running the watcher daemon.
package realtime

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/morpheus1988wer/HertzBridge/internal/conf"
	"github.com/morpheus1988wer/HertzBridge/internal/watcher"
)

// Command creates the realtime watcher command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Track the player and switch the device format in realtime",
		Long:  "Continuously watch the media player and keep the output device's sample rate aligned with the current track.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return watcher.RunRealtime(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Player.Command, "player-command", viper.GetString("player.command"), "Command printing the current track as JSON")
	cmd.Flags().StringVar(&settings.Player.ProcessName, "player-process", viper.GetString("player.processname"), "Player process name watched for termination")
	cmd.Flags().StringVar(&settings.Hints.Command, "hints-command", viper.GetString("hints.command"), "Diagnostic stream command scanned for rate hints")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")
	cmd.Flags().BoolVar(&settings.MQTT.Enabled, "mqtt", viper.GetBool("mqtt.enabled"), "Publish status updates to MQTT")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
