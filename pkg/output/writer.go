package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer outputs JSONL records for a run.
//
// Implementations must be safe for concurrent use from multiple
// goroutines. Each Write* method emits a complete record as a
// single line of JSON followed by a newline.
type Writer interface {
	// WriteSequence emits a sequence outcome record.
	WriteSequence(ctx context.Context, seq *SequenceRecord) error

	// WriteError emits an error record.
	WriteError(ctx context.Context, err *ErrorRecord) error

	// WriteSummary emits a summary record.
	WriteSummary(ctx context.Context, sum *SummaryRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use. Writes are serialized using
// a mutex to ensure atomic line writes (no interleaved output).
type JSONLWriter struct {
	w     io.Writer
	runID string
	mu    sync.Mutex

	// closed indicates the writer has been closed.
	closed bool
}

// NewJSONLWriter creates a new JSONL writer stamping every record with runID.
func NewJSONLWriter(w io.Writer, runID string) *JSONLWriter {
	return &JSONLWriter{
		w:     w,
		runID: runID,
	}
}

// WriteSequence emits a sequence outcome record.
func (jw *JSONLWriter) WriteSequence(ctx context.Context, seq *SequenceRecord) error {
	return jw.writeRecord(ctx, TypeSequence, seq)
}

// WriteError emits an error record.
func (jw *JSONLWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, err)
}

// WriteSummary emits a summary record.
func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

// Close marks the writer as closed.
//
// If the underlying writer implements io.Closer, it is NOT closed.
// The caller is responsible for closing the underlying writer.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

// writeRecord marshals data and writes a complete record line while
// holding the mutex.
func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	record := Record{
		Type:  recordType,
		TS:    time.Now().UTC(),
		RunID: jw.runID,
		Data:  dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// io.Writer may return n < len(p) with a nil error; a truncated line
	// would corrupt the stream.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}

	return nil
}

// writeAll writes all bytes to w, handling short writes.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// NopWriter discards all records.
type NopWriter struct{}

func (NopWriter) WriteSequence(context.Context, *SequenceRecord) error { return nil }
func (NopWriter) WriteError(context.Context, *ErrorRecord) error       { return nil }
func (NopWriter) WriteSummary(context.Context, *SummaryRecord) error   { return nil }
func (NopWriter) Close() error                                         { return nil }

// Compile-time checks.
var (
	_ Writer = (*JSONLWriter)(nil)
	_ Writer = NopWriter{}
)
