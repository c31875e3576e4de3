package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3leaps/jobprobe/internal/config"
	"github.com/3leaps/jobprobe/internal/observability"
	"github.com/3leaps/jobprobe/internal/server"
	"github.com/3leaps/jobprobe/internal/server/handlers"
	"github.com/3leaps/jobprobe/pkg/driver"
	"github.com/3leaps/jobprobe/pkg/output"
	"github.com/3leaps/jobprobe/pkg/sequence"
	"github.com/3leaps/jobprobe/pkg/worker"
)

// runProbe loads configuration and runs rounds until ctx is cancelled or
// the round limit is reached. The summary is printed on every stop path
// once the loop has started.
func runProbe(ctx context.Context, overrides map[string]any) error {
	cfg, err := config.Load(ctx, overrides)
	if err != nil {
		observability.InitCLILogger("jobprobe", false)
		observability.CLILogger.Error("Failed to load configuration", zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	logger := initLogger(cfg)

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrNoEndpoints) {
			logger.Error("No worker URLs provided in WORKER_URLS environment variable")
		} else {
			logger.Error("Invalid configuration", zap.Error(err))
		}
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	tmpl := worker.DefaultJobTemplate()
	if cfg.Template != "" {
		tmpl, err = worker.LoadTemplate(cfg.Template)
		if err != nil {
			logger.Error("Failed to load job template", zap.String("path", cfg.Template), zap.Error(err))
			return exitError(foundry.ExitInvalidArgument, "Invalid job template", err)
		}
	}

	runID := uuid.New().String()
	writer, cleanup, err := createWriter(cfg.Output, runID)
	if err != nil {
		logger.Error("Failed to create output", zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to create output", err)
	}
	defer cleanup()

	if cfg.Client.InsecureSkipVerify {
		logger.Warn("TLS certificate verification is disabled for worker requests")
	}

	logger.Info("Using worker URLs",
		zap.String("run_id", runID),
		zap.Strings("endpoints", cfg.Endpoints),
		zap.String("job_type", tmpl.Type),
		zap.Duration("interval", cfg.Interval))

	d := driver.New(buildRunners(cfg, tmpl, logger), driver.Config{
		Interval:  cfg.Interval,
		MaxRounds: cfg.MaxRounds,
	}, logger).WithWriter(writer)

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()

	if cfg.Status.Addr != "" {
		srv := server.New(cfg.Status.Addr, d, server.VersionInfo{
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		})
		srv.Health().RegisterChecker("loop", loopHealthCheck(d, loopStaleAfter(cfg)))
		go func() {
			if err := srv.Serve(loopCtx); err != nil {
				logger.Error("Status server failed", zap.String("addr", cfg.Status.Addr), zap.Error(err))
			}
		}()
	}

	logger.Info("Starting job sequence loop. Press Ctrl+C to stop and view results.")
	summary := d.Run(loopCtx)

	driver.LogSummary(logger, summary)
	if err := driver.WriteSummary(context.WithoutCancel(ctx), writer, summary); err != nil {
		logger.Debug("Failed to emit summary record", zap.Error(err))
	}

	if ctx.Err() != nil {
		logger.Info("Job sequence loop interrupted by user")
	}
	return nil
}

// stepsPerSequence is the number of worker requests in one sequence.
const stepsPerSequence = 4

// loopHealthCheck reports the round loop unhealthy once it has stopped or
// when no round has finished within staleAfter.
func loopHealthCheck(d *driver.Driver, staleAfter time.Duration) handlers.HealthChecker {
	return handlers.HealthCheckerFunc(func(ctx context.Context) error {
		return d.CheckLoop(staleAfter)
	})
}

// loopStaleAfter is the longest a healthy round can take: the interval plus
// four sequential requests, each bounded by the request timeout and the
// rate limiter.
func loopStaleAfter(cfg *config.Config) time.Duration {
	perRequest := cfg.Client.RequestTimeout
	if cfg.Client.RateLimit > 0 {
		perRequest += time.Duration(float64(time.Second) / cfg.Client.RateLimit)
	}
	return cfg.Interval + stepsPerSequence*perRequest
}

func initLogger(cfg *config.Config) *zap.Logger {
	if cfg.Logging.Verbose {
		return observability.InitCLILogger("jobprobe", true)
	}
	return observability.InitWithLevel("jobprobe", cfg.Logging.Level)
}

// buildRunners creates one sequence runner per endpoint.
func buildRunners(cfg *config.Config, tmpl worker.JobTemplate, logger *zap.Logger) []driver.Runner {
	clientCfg := worker.Config{
		Timeout:            cfg.Client.RequestTimeout,
		InsecureSkipVerify: cfg.Client.InsecureSkipVerify,
		RateLimit:          cfg.Client.RateLimit,
	}

	runners := make([]driver.Runner, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		client := worker.NewClient(ep, clientCfg, logger)
		runners = append(runners, sequence.NewRunner(client, tmpl, logger))
	}
	return runners
}

// createWriter creates the JSONL writer for dest.
//
// An empty destination disables record output.
// Returns the writer, a cleanup function, and any error.
func createWriter(dest, runID string) (output.Writer, func(), error) {
	if dest == "" {
		return output.NopWriter{}, func() {}, nil
	}

	if dest == "stdout" || dest == "-" {
		w := output.NewJSONLWriter(os.Stdout, runID)
		return w, func() { _ = w.Close() }, nil
	}

	path := strings.TrimPrefix(dest, "file:")
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}

	w := output.NewJSONLWriter(f, runID)
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
	}
	return w, cleanup, nil
}
