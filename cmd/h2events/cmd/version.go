package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

const h2eventsVersion = "0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show h2events version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "h2events version %s (%s)\n", h2eventsVersion, runtime.Version())
			return nil
		},
	}
}
