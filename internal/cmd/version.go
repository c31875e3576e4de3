package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "jobprobe %s\n", versionInfo.Version)
		_, _ = fmt.Fprintf(out, "  commit:     %s\n", versionInfo.Commit)
		_, _ = fmt.Fprintf(out, "  build date: %s\n", versionInfo.BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
