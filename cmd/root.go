// Package cmd assembles the hertzbridge command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/morpheus1988wer/HertzBridge/cmd/devices"
	"github.com/morpheus1988wer/HertzBridge/cmd/inspect"
	"github.com/morpheus1988wer/HertzBridge/cmd/realtime"
	"github.com/morpheus1988wer/HertzBridge/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hertzbridge",
		Short: "HertzBridge CLI",
		Long:  "Keeps the output device's sample rate in step with whatever the player is playing.",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	subcommands := []*cobra.Command{
		realtime.Command(settings),
		devices.Command(settings),
		inspect.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.Flags().Parse(args); err != nil {
			return err
		}
		// Sync the settings struct with viper so command line arguments
		// take precedence over the config file.
		conf.SyncViper(settings)
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Device.Name, "device", viper.GetString("device.name"), "Output device name or id, empty for the system default")
	rootCmd.PersistentFlags().Float64Var(&settings.Engine.ManualRate, "rate", viper.GetFloat64("engine.manualrate"), "Pin the output sample rate in Hz, 0 to follow the player")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
