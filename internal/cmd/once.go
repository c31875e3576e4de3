package cmd

import (
	"github.com/spf13/cobra"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single round against every worker and print the summary",
	Long: `Run exactly one round of the job sequence against every configured
worker, then print the summary. Useful as a smoke test after deploying
workers.

Example:
  jobprobe once --workers https://localhost:8080`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := flagOverrides(cmd)
		overrides["max_rounds"] = 1
		return runProbe(cmd.Context(), overrides)
	},
}

func init() {
	rootCmd.AddCommand(onceCmd)
}
