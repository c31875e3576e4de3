// Package output provides JSONL output for job probe runs.
//
// Output is structured as typed record envelopes containing sequence
// outcomes, errors, and the final summary. Each line is a self-contained
// JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: jobprobe.<type>.v<version>
const (
	// TypeSequence identifies one sequence outcome.
	TypeSequence = "jobprobe.sequence.v1"

	// TypeError identifies error records.
	TypeError = "jobprobe.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "jobprobe.summary.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "jobprobe.sequence.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// RunID is the correlation ID for this process run.
	RunID string `json:"run_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// SequenceRecord is the data payload for one sequence outcome.
type SequenceRecord struct {
	Round      int            `json:"round"`
	Endpoint   string         `json:"endpoint"`
	JobID      string         `json:"job_id,omitempty"`
	Succeeded  bool           `json:"succeeded"`
	FailedStep string         `json:"failed_step,omitempty"`
	Duration   time.Duration  `json:"duration_ns"`
	Result     map[string]any `json:"result,omitempty"`
}

// ErrorRecord is the data payload for errors.
//
// Errors are emitted as records rather than stopping the run; the next
// round tries again independently.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	Endpoint string `json:"endpoint,omitempty"`
	Step     string `json:"step,omitempty"`
	Round    int    `json:"round,omitempty"`
}

// Error codes for ErrorRecord.Code.
const (
	ErrCodeUnexpectedStatus = "UNEXPECTED_STATUS"
	ErrCodeMissingJobID     = "MISSING_JOB_ID"
	ErrCodeEmptyResult      = "EMPTY_RESULT"
	ErrCodeTransport        = "TRANSPORT_ERROR"
)

// EndpointSummary is the per-endpoint part of a summary record.
type EndpointSummary struct {
	Endpoint    string  `json:"endpoint"`
	Attempted   int64   `json:"attempted"`
	Succeeded   int64   `json:"succeeded"`
	Failed      int64   `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// SummaryRecord is the data payload for the final summary.
type SummaryRecord struct {
	Rounds        int               `json:"rounds"`
	Duration      time.Duration     `json:"duration_ns"`
	DurationHuman string            `json:"duration"`
	Endpoints     []EndpointSummary `json:"endpoints"`
}

var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
