// Package inspect implements the command printing a local file's
// embedded audio format.
package inspect

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/morpheus1988wer/HertzBridge/internal/audiofile"
	"github.com/morpheus1988wer/HertzBridge/internal/conf"
)

// Command creates the file inspection command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [file]",
		Short: "Print the embedded audio format of a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inspector := audiofile.NewFileInspector()
			info, err := inspector.Inspect(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %.1f kHz, %d-bit, %d channel(s)\n",
				args[0], info.SampleRate/1000.0, info.BitDepth, info.Channels)
			return nil
		},
	}
}
