// Package worker implements the HTTP client for a remote job worker.
//
// A worker exposes four calls that together process one job:
//   - generate: POST /job/generate, returns an encrypted job signature
//   - submit:   POST /job/add, returns the job id
//   - poll:     GET /job/status/{id}, returns an encrypted status signature
//   - finalize: POST /job/result, returns the decrypted job result
//
// Signatures are relayed as opaque strings after sanitization.
package worker

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/jobprobe/pkg/signature"
)

// maxBodyBytes bounds how much of a worker response is read.
const maxBodyBytes = 32 << 20

// Config configures a worker client.
type Config struct {
	// Timeout bounds each HTTP request including reading the body.
	// Default: 30s
	Timeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	// Workers commonly serve self-signed certificates.
	// Default: true
	InsecureSkipVerify bool

	// RateLimit is the maximum requests per second to this worker.
	// Zero means unlimited.
	RateLimit float64

	// HTTPClient overrides the client built from Timeout and
	// InsecureSkipVerify. Used by tests.
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:            30 * time.Second,
		InsecureSkipVerify: true,
	}
}

// Client talks to a single worker endpoint.
//
// Client is safe for concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewClient creates a client for the worker at endpoint.
func NewClient(endpoint string, cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hc := cfg.HTTPClient
	if hc == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // workers use self-signed certs
		}
		hc = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		}
	}

	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     hc,
		logger:   logger.With(zap.String("endpoint", endpoint)),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// Endpoint returns the worker base address.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Generate asks the worker to create a job from tmpl and returns the
// encrypted job signature as the raw response text.
func (c *Client) Generate(ctx context.Context, tmpl JobTemplate) (string, error) {
	body, err := c.do(ctx, "generate", http.MethodPost, "/job/generate", tmpl)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Submit sends the sanitized job signature to the worker and returns the
// job id. An empty id with a nil error means the response had no uid.
func (c *Client) Submit(ctx context.Context, sig string) (string, error) {
	payload := map[string]string{
		"encrypted_job": signature.Sanitize(sig),
	}
	body, err := c.do(ctx, "submit", http.MethodPost, "/job/add", payload)
	if err != nil {
		return "", err
	}

	// Numeric ids keep their literal form instead of going through float64.
	var resp map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return "", &RequestError{Op: "submit", Endpoint: c.endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}

	switch uid := resp["uid"].(type) {
	case string:
		return uid, nil
	case json.Number:
		return uid.String(), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(uid), nil
	}
}

// Poll fetches the encrypted status signature for jobID.
func (c *Client) Poll(ctx context.Context, jobID string) (string, error) {
	body, err := c.do(ctx, "poll", http.MethodGet, "/job/status/"+url.PathEscape(jobID), nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Finalize submits both signatures, each sanitized independently, and
// returns the decoded job result.
func (c *Client) Finalize(ctx context.Context, sig, statusSig string) (map[string]any, error) {
	payload := map[string]string{
		"encrypted_result":  signature.Sanitize(statusSig),
		"encrypted_request": signature.Sanitize(sig),
	}
	body, err := c.do(ctx, "finalize", http.MethodPost, "/job/result", payload)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &RequestError{Op: "finalize", Endpoint: c.endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	return result, nil
}

// do performs one request and returns the response body.
//
// Any non-2xx status is returned as a RequestError wrapping
// ErrUnexpectedStatus.
func (c *Client) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &RequestError{Op: op, Endpoint: c.endpoint, Err: err}
		}
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &RequestError{Op: op, Endpoint: c.endpoint, Err: fmt.Errorf("encode request: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
	if err != nil {
		return nil, &RequestError{Op: op, Endpoint: c.endpoint, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("Worker request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Op: op, Endpoint: c.endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &RequestError{Op: op, Endpoint: c.endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{
			Op:         op,
			Endpoint:   c.endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", ErrUnexpectedStatus, strings.TrimSpace(signature.Truncate(string(body), 200))),
		}
	}

	return body, nil
}
