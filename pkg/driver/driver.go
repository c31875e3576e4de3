// Package driver runs job sequences against many workers in rounds.
//
// Each round launches one sequence per endpoint concurrently and waits for
// all of them before counting outcomes and pausing for the configured
// interval. The loop runs until the context is cancelled or the round
// limit is reached, and always returns a Summary.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/jobprobe/pkg/output"
	"github.com/3leaps/jobprobe/pkg/sequence"
	"github.com/3leaps/jobprobe/pkg/worker"
)

var (
	// ErrLoopStopped indicates Run has returned.
	ErrLoopStopped = errors.New("round loop stopped")

	// ErrLoopStalled indicates no round finished within the allowed time.
	ErrLoopStalled = errors.New("round loop stalled")
)

// Runner executes one sequence against one endpoint.
type Runner interface {
	Endpoint() string
	Run(ctx context.Context) sequence.Outcome
}

// Config configures driver behavior.
type Config struct {
	// Interval is the pause between rounds.
	// Default: 5s
	Interval time.Duration

	// MaxRounds stops the loop after this many rounds.
	// Zero means run until cancelled.
	MaxRounds int
}

// DefaultConfig returns the default driver configuration.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
	}
}

// Summary contains the counters of a finished run.
type Summary struct {
	// Rounds is the number of rounds whose outcomes were counted.
	Rounds int

	// Duration is the total time spent in the loop.
	Duration time.Duration

	// Endpoints holds per-endpoint counters in configuration order.
	Endpoints []StatsSnapshot
}

// Driver owns the runners and their counters.
//
// Driver is safe for single use only. Snapshot may be called concurrently
// with Run.
type Driver struct {
	runners []Runner
	stats   map[string]*Stats
	config  Config
	logger  *zap.Logger
	writer  output.Writer
	rounds  atomic.Int64

	// lastProgress is the unix nano time Run started or a round last
	// finished. Zero before Run.
	lastProgress atomic.Int64
	stopped      atomic.Bool
}

// New creates a driver for runners. A runner whose endpoint repeats an
// earlier one is dropped.
func New(runners []Runner, cfg Config, logger *zap.Logger) *Driver {
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stats := make(map[string]*Stats, len(runners))
	unique := make([]Runner, 0, len(runners))
	for _, r := range runners {
		if _, dup := stats[r.Endpoint()]; dup {
			logger.Warn("Ignoring duplicate endpoint", zap.String("endpoint", r.Endpoint()))
			continue
		}
		stats[r.Endpoint()] = NewStats(r.Endpoint())
		unique = append(unique, r)
	}

	return &Driver{
		runners: unique,
		stats:   stats,
		config:  cfg,
		logger:  logger,
		writer:  output.NopWriter{},
	}
}

// WithWriter sets a JSONL writer that receives one record per sequence.
// Returns the driver for method chaining.
func (d *Driver) WithWriter(w output.Writer) *Driver {
	if w != nil {
		d.writer = w
	}
	return d
}

// Run executes rounds until ctx is cancelled or MaxRounds is reached.
//
// Cancellation is the normal way to stop; sequences in flight when it
// arrives are abandoned and not counted.
func (d *Driver) Run(ctx context.Context) *Summary {
	start := time.Now()
	d.lastProgress.Store(start.UnixNano())
	defer d.stopped.Store(true)

	for round := 1; ; round++ {
		if ctx.Err() != nil {
			break
		}
		if d.config.MaxRounds > 0 && round > d.config.MaxRounds {
			break
		}

		d.logger.Info("Starting round",
			zap.Int("round", round),
			zap.Int("endpoints", len(d.runners)))

		d.RunRound(ctx, round)

		if ctx.Err() != nil {
			break
		}
		if d.config.MaxRounds > 0 && round >= d.config.MaxRounds {
			break
		}
		if err := sleep(ctx, d.config.Interval); err != nil {
			break
		}
	}

	if ctx.Err() != nil {
		d.logger.Info("Round loop interrupted")
	}

	return d.summary(time.Since(start))
}

// RunRound runs one sequence per endpoint concurrently and records the
// outcomes once all of them have finished.
func (d *Driver) RunRound(ctx context.Context, round int) []sequence.Outcome {
	outcomes := make([]sequence.Outcome, len(d.runners))

	var wg sync.WaitGroup
	for i, r := range d.runners {
		wg.Add(1)
		go func(i int, r Runner) {
			defer wg.Done()
			outcomes[i] = r.Run(ctx)
			outcomes[i].Endpoint = r.Endpoint()
		}(i, r)
	}
	wg.Wait()
	d.lastProgress.Store(time.Now().UnixNano())

	interrupted := ctx.Err() != nil
	counted := 0
	for _, out := range outcomes {
		if interrupted && out.Cancelled() {
			continue
		}
		d.record(ctx, round, out)
		counted++
	}
	if counted > 0 {
		d.rounds.Store(int64(round))
	}

	return outcomes
}

// Snapshot returns the current counters in configuration order.
func (d *Driver) Snapshot() []StatsSnapshot {
	snaps := make([]StatsSnapshot, 0, len(d.runners))
	for _, r := range d.runners {
		snaps = append(snaps, d.stats[r.Endpoint()].Snapshot())
	}
	return snaps
}

// Rounds returns the number of the last round that was counted.
func (d *Driver) Rounds() int {
	return int(d.rounds.Load())
}

// CheckLoop reports whether the round loop is alive. It returns
// ErrLoopStopped once Run has returned, and ErrLoopStalled when no round
// has finished within staleAfter. A zero staleAfter disables the stall
// check. Before Run starts the loop is considered alive.
func (d *Driver) CheckLoop(staleAfter time.Duration) error {
	if d.stopped.Load() {
		return ErrLoopStopped
	}
	last := d.lastProgress.Load()
	if last == 0 || staleAfter <= 0 {
		return nil
	}
	if since := time.Since(time.Unix(0, last)); since > staleAfter {
		return fmt.Errorf("%w: no round finished in %s", ErrLoopStalled, since.Round(time.Millisecond))
	}
	return nil
}

func (d *Driver) record(ctx context.Context, round int, out sequence.Outcome) {
	stats, ok := d.stats[out.Endpoint]
	if !ok {
		return
	}

	succeeded := out.Succeeded()
	stats.Record(succeeded)

	if succeeded {
		d.logger.Info("Sequence succeeded",
			zap.String("endpoint", out.Endpoint),
			zap.Int("round", round))
	} else {
		d.logger.Warn("Sequence failed",
			zap.String("endpoint", out.Endpoint),
			zap.Int("round", round),
			zap.String("step", string(out.FailedStep)))
	}

	// Output is best effort; a failed write must not stop the loop.
	// Records of the final interrupted round are still written.
	wctx := context.WithoutCancel(ctx)
	_ = d.writer.WriteSequence(wctx, &output.SequenceRecord{
		Round:      round,
		Endpoint:   out.Endpoint,
		JobID:      out.JobID,
		Succeeded:  succeeded,
		FailedStep: string(out.FailedStep),
		Duration:   out.Duration,
		Result:     out.Result,
	})
	if out.Err != nil {
		_ = d.writer.WriteError(wctx, &output.ErrorRecord{
			Code:     errorCode(out.Err),
			Message:  out.Err.Error(),
			Endpoint: out.Endpoint,
			Step:     string(out.FailedStep),
			Round:    round,
		})
	}
}

func (d *Driver) summary(duration time.Duration) *Summary {
	return &Summary{
		Rounds:    d.Rounds(),
		Duration:  duration,
		Endpoints: d.Snapshot(),
	}
}

// WriteSummary emits s as a summary record.
func WriteSummary(ctx context.Context, w output.Writer, s *Summary) error {
	rec := &output.SummaryRecord{
		Rounds:        s.Rounds,
		Duration:      s.Duration,
		DurationHuman: s.Duration.Round(time.Millisecond).String(),
		Endpoints:     make([]output.EndpointSummary, 0, len(s.Endpoints)),
	}
	for _, e := range s.Endpoints {
		rec.Endpoints = append(rec.Endpoints, output.EndpointSummary{
			Endpoint:    e.Endpoint,
			Attempted:   e.Attempted,
			Succeeded:   e.Succeeded,
			Failed:      e.Failed,
			SuccessRate: e.SuccessRate(),
		})
	}
	return w.WriteSummary(ctx, rec)
}

// LogSummary prints the human-readable report.
func LogSummary(logger *zap.Logger, s *Summary) {
	logger.Info("===== JOB SEQUENCE SUMMARY =====",
		zap.Int("rounds", s.Rounds),
		zap.Duration("duration", s.Duration.Round(time.Millisecond)))
	for _, e := range s.Endpoints {
		logger.Info(fmt.Sprintf("Node: %s", e.Endpoint))
		logger.Info(fmt.Sprintf("  Sequences attempted: %d", e.Attempted))
		logger.Info(fmt.Sprintf("  Successful sequences: %d", e.Succeeded))
		logger.Info(fmt.Sprintf("  Failed sequences: %d", e.Failed))
		logger.Info(fmt.Sprintf("  Success rate: %s", FormatRate(e.SuccessRate())))
	}
}

// FormatRate renders a success rate with two decimals.
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate)
}

func errorCode(err error) string {
	switch {
	case worker.IsUnexpectedStatus(err):
		return output.ErrCodeUnexpectedStatus
	case worker.IsMissingJobID(err):
		return output.ErrCodeMissingJobID
	case errors.Is(err, sequence.ErrEmptyResult):
		return output.ErrCodeEmptyResult
	default:
		return output.ErrCodeTransport
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
