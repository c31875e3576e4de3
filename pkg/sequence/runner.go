// Package sequence runs the four-step job interaction against one worker.
//
// Runner.Run is the single error boundary of the client: every failure of
// generate, submit, poll or finalize is logged and folded into an Outcome
// with no result. Callers never see a returned error.
package sequence

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/jobprobe/pkg/signature"
	"github.com/3leaps/jobprobe/pkg/worker"
)

// Step names one call of the sequence.
type Step string

const (
	StepGenerate Step = "generate"
	StepSubmit   Step = "submit"
	StepPoll     Step = "poll"
	StepFinalize Step = "finalize"
)

// ErrEmptyResult indicates finalize succeeded but returned an empty object.
var ErrEmptyResult = errors.New("empty job result")

// sigLogLen is how much of a signature is shown in logs.
const sigLogLen = 20

// Client is the subset of worker.Client used by Runner.
type Client interface {
	Endpoint() string
	Generate(ctx context.Context, tmpl worker.JobTemplate) (string, error)
	Submit(ctx context.Context, sig string) (string, error)
	Poll(ctx context.Context, jobID string) (string, error)
	Finalize(ctx context.Context, sig, statusSig string) (map[string]any, error)
}

// Outcome is the result of one sequence run.
//
// Exactly one of Result and Err is set.
type Outcome struct {
	Endpoint string
	JobID    string
	Result   map[string]any
	Err      error

	// FailedStep is the step that produced Err. Empty on success.
	FailedStep Step

	Duration time.Duration
}

// Succeeded reports whether the sequence produced a result.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && len(o.Result) > 0
}

// Cancelled reports whether the sequence was cut short by context
// cancellation rather than a worker failure. Request timeouts are worker
// failures and do not count as cancellation.
func (o Outcome) Cancelled() bool {
	return errors.Is(o.Err, context.Canceled)
}

// Runner executes the sequence against one worker.
type Runner struct {
	client   Client
	template worker.JobTemplate
	logger   *zap.Logger
}

// NewRunner creates a runner that generates jobs from tmpl.
func NewRunner(c Client, tmpl worker.JobTemplate, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		client:   c,
		template: tmpl,
		logger:   logger.With(zap.String("endpoint", c.Endpoint())),
	}
}

// Endpoint returns the worker address this runner targets.
func (r *Runner) Endpoint() string {
	return r.client.Endpoint()
}

// Run executes generate → submit → poll → finalize, stopping at the first
// failure.
func (r *Runner) Run(ctx context.Context) Outcome {
	start := time.Now()
	out := r.run(ctx)
	out.Endpoint = r.client.Endpoint()
	out.Duration = time.Since(start)

	if out.Err != nil {
		r.logger.Error("Job sequence failed",
			zap.String("step", string(out.FailedStep)),
			zap.Duration("duration", out.Duration),
			zap.Error(out.Err))
		return out
	}

	r.logger.Info("Job sequence completed",
		zap.String("job_id", out.JobID),
		zap.Int("result_fields", len(out.Result)),
		zap.Duration("duration", out.Duration))
	return out
}

func (r *Runner) run(ctx context.Context) Outcome {
	r.logger.Debug("Generating job", zap.String("type", r.template.Type))
	sig, err := r.client.Generate(ctx, r.template)
	if err != nil {
		return failed(StepGenerate, err)
	}
	r.logger.Debug("Generated job signature", zap.String("signature", signature.Truncate(sig, sigLogLen)))

	jobID, err := r.client.Submit(ctx, sig)
	if err != nil {
		return failed(StepSubmit, err)
	}
	if jobID == "" {
		return failed(StepSubmit, worker.ErrMissingJobID)
	}
	r.logger.Debug("Submitted job", zap.String("job_id", jobID))

	statusSig, err := r.client.Poll(ctx, jobID)
	if err != nil {
		out := failed(StepPoll, err)
		out.JobID = jobID
		return out
	}
	r.logger.Debug("Job status signature", zap.String("signature", signature.Truncate(statusSig, sigLogLen)))

	result, err := r.client.Finalize(ctx, sig, statusSig)
	if err != nil {
		out := failed(StepFinalize, err)
		out.JobID = jobID
		return out
	}
	if len(result) == 0 {
		out := failed(StepFinalize, ErrEmptyResult)
		out.JobID = jobID
		return out
	}

	return Outcome{JobID: jobID, Result: result}
}

func failed(step Step, err error) Outcome {
	return Outcome{FailedStep: step, Err: err}
}
