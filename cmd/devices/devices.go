// Package devices implements the command listing output devices.
package devices

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/morpheus1988wer/HertzBridge/internal/conf"
	"github.com/morpheus1988wer/HertzBridge/internal/device"
)

// Command creates the device listing command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio output devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			controller := device.NewMalgoController()
			infos, err := controller.ListOutputDevices()
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("no output devices found")
				return nil
			}
			for i, info := range infos {
				marker := " "
				if info.IsDefault {
					marker = "*"
				}
				fmt.Printf("%s %d: %s (%s)\n", marker, i, info.Name, info.ID)
			}
			return nil
		},
	}
}
