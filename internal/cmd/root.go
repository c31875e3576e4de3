// Package cmd implements the jobprobe command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/jobprobe/internal/observability"
)

// versionInfo is set from main via SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build information for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	flagConfig         string
	flagWorkers        string
	flagInterval       string
	flagRequestTimeout string
	flagTemplate       string
	flagOutput         string
	flagStatusAddr     string
	flagMaxRounds      int
	flagRateLimit      float64
	flagInsecure       bool
	flagVerbose        bool
	flagLogLevel       string
)

var rootCmd = &cobra.Command{
	Use:   "jobprobe",
	Short: "Drive job workers through generate/submit/poll/result rounds",
	Long: `jobprobe repeatedly runs the four-step job sequence against every
configured worker and counts successes and failures per worker.

Each round runs one sequence per worker in parallel, waits for all of them,
then pauses for the configured interval. Press Ctrl+C to stop and print the
summary.

Workers are read from WORKER_URLS (comma-separated, optionally quoted),
JOBPROBE_WORKER_URLS, the worker_urls config key, or --workers.

Examples:
  WORKER_URLS="https://10.0.0.1:8080,https://10.0.0.2:8080" jobprobe
  jobprobe --workers https://localhost:8080 --interval 10s
  jobprobe --output probe.jsonl --status-addr 127.0.0.1:9090`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe(cmd.Context(), flagOverrides(cmd))
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Path to config file (default: ./jobprobe.yaml if present)")
	pf.StringVarP(&flagWorkers, "workers", "w", "", "Comma-separated worker base URLs (overrides WORKER_URLS)")
	pf.StringVar(&flagInterval, "interval", "", "Pause between rounds (default 5s)")
	pf.StringVar(&flagRequestTimeout, "request-timeout", "", "Timeout for each worker request (default 30s)")
	pf.StringVarP(&flagTemplate, "template", "t", "", "YAML or JSON job template for /job/generate")
	pf.StringVarP(&flagOutput, "output", "o", "", "JSONL output destination (stdout, file:<path>, or path)")
	pf.StringVar(&flagStatusAddr, "status-addr", "", "Serve /health and /stats on this address")
	pf.IntVar(&flagMaxRounds, "max-rounds", 0, "Stop after this many rounds (0 = until interrupted)")
	pf.Float64Var(&flagRateLimit, "rate-limit", 0, "Max requests per second per worker (0 = unlimited)")
	pf.BoolVar(&flagInsecure, "insecure", true, "Skip TLS certificate verification for workers")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// flagOverrides collects the flags the user actually set, keyed by config
// key, so they take precedence over env and file values.
func flagOverrides(cmd *cobra.Command) map[string]any {
	flags := cmd.Flags()
	o := make(map[string]any)

	set := func(name, key string, val any) {
		if flags.Changed(name) {
			o[key] = val
		}
	}
	set("config", "config_file", flagConfig)
	set("workers", "worker_urls", flagWorkers)
	set("interval", "interval", flagInterval)
	set("request-timeout", "client.request_timeout", flagRequestTimeout)
	set("template", "template", flagTemplate)
	set("output", "output", flagOutput)
	set("status-addr", "status.addr", flagStatusAddr)
	set("max-rounds", "max_rounds", flagMaxRounds)
	set("rate-limit", "client.rate_limit", flagRateLimit)
	set("insecure", "client.insecure_skip_verify", flagInsecure)
	set("verbose", "logging.verbose", flagVerbose)
	set("log-level", "logging.level", flagLogLevel)
	return o
}

// Execute runs the root command and returns the process exit code.
//
// SIGINT and SIGTERM cancel the command context; the probe loop treats
// that as its normal stop signal.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return exitCode(rootCmd.ExecuteContext(ctx))
}

// exitCode maps a command error to a process exit code. Errors built with
// exitError were logged where they occurred; anything else, such as a
// cobra usage error, is logged here.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitCodeError
	if errors.As(err, &ee) {
		return ee.code
	}
	observability.CLILogger.Error("Command failed", zap.Error(err))
	fmt.Fprintln(os.Stderr, err)
	return foundry.ExitInvalidArgument
}
