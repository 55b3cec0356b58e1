package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/audiorelay/pkg/audio/portaudio"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio devices",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			devices, err := portaudio.Devices()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tNAME\tIN\tOUT\tRATE\tDEFAULT")
			for _, d := range devices {
				def := ""
				switch {
				case d.IsDefaultInput && d.IsDefaultOutput:
					def = "in,out"
				case d.IsDefaultInput:
					def = "in"
				case d.IsDefaultOutput:
					def = "out"
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.0f\t%s\n",
					d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, def)
			}
			return w.Flush()
		},
	}
}
