// Package workertest provides an in-process fake job worker for tests.
//
// The fake speaks the same four calls as a real worker and records what it
// receives so tests can assert on sanitization and call order.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    w := workertest.New(t)
//	    client := worker.NewClient(w.URL(), worker.DefaultConfig(), nil)
//	    // ... test code ...
//	}
package workertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// Step names a worker call.
const (
	StepGenerate = "generate"
	StepSubmit   = "submit"
	StepPoll     = "poll"
	StepFinalize = "finalize"
)

const (
	// DefaultSignature is returned by generate. It carries the quoting and
	// escape artifacts real workers produce.
	DefaultSignature = `"ey\/job\/sig"`

	// DefaultStatusSignature is returned by poll.
	DefaultStatusSignature = `"ey\/status\/sig"`

	// DefaultJobID is returned by submit.
	DefaultJobID = "0b6f6b2c-7a43-4a57-9a2d-3f1f1c1e9c11"
)

// Worker is a fake job worker backed by httptest.Server.
type Worker struct {
	server *httptest.Server

	mu        sync.Mutex
	failStep  string
	failCode  int
	omitUID   bool
	emptyBody bool
	delay     time.Duration
	calls     []string
	bodies    map[string]map[string]any
	paths     []string
}

// New starts a fake worker and registers its shutdown with t.Cleanup.
func New(t testing.TB) *Worker {
	t.Helper()

	w := &Worker{bodies: make(map[string]map[string]any)}

	r := chi.NewRouter()
	r.Post("/job/generate", w.handle(StepGenerate, func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte(DefaultSignature))
	}))
	r.Post("/job/add", w.handle(StepSubmit, func(rw http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"uid": DefaultJobID}
		w.mu.Lock()
		if w.omitUID {
			resp = map[string]any{"status": "queued"}
		}
		w.mu.Unlock()
		writeJSON(rw, resp)
	}))
	r.Get("/job/status/{jobID}", w.handle(StepPoll, func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte(DefaultStatusSignature))
	}))
	r.Post("/job/result", w.handle(StepFinalize, func(rw http.ResponseWriter, r *http.Request) {
		w.mu.Lock()
		empty := w.emptyBody
		w.mu.Unlock()
		if empty {
			writeJSON(rw, map[string]any{})
			return
		}
		writeJSON(rw, map[string]any{"tweets": []any{"#AI is trending"}, "count": 1})
	}))

	w.server = httptest.NewServer(r)
	t.Cleanup(w.server.Close)
	return w
}

// URL returns the worker base address.
func (w *Worker) URL() string {
	return w.server.URL
}

// FailAt makes the given step answer with status code.
func (w *Worker) FailAt(step string, code int) *Worker {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failStep = step
	w.failCode = code
	return w
}

// OmitUID makes submit answer without a uid field.
func (w *Worker) OmitUID() *Worker {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.omitUID = true
	return w
}

// EmptyResult makes finalize answer with an empty JSON object.
func (w *Worker) EmptyResult() *Worker {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emptyBody = true
	return w
}

// Delay makes every call sleep for d before answering.
func (w *Worker) Delay(d time.Duration) *Worker {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delay = d
	return w
}

// Calls returns the steps received, in order.
func (w *Worker) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

// Paths returns the request paths received, in order.
func (w *Worker) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.paths...)
}

// Body returns the last JSON body received for step.
func (w *Worker) Body(step string) map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bodies[step]
}

func (w *Worker) handle(step string, next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		w.mu.Lock()
		w.calls = append(w.calls, step)
		w.paths = append(w.paths, r.URL.EscapedPath())
		if r.Method == http.MethodPost {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				w.bodies[step] = body
			}
		}
		delay := w.delay
		fail := w.failStep == step
		code := w.failCode
		w.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if fail {
			http.Error(rw, "injected failure", code)
			return
		}
		next(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}
