package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/jobprobe/test/workertest"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("https://worker:8080/", Config{}, nil)

	assert.Equal(t, "https://worker:8080", c.Endpoint())
	assert.Nil(t, c.limiter)
	require.NotNil(t, c.http)
	assert.Equal(t, 30*time.Second, c.http.Timeout)
}

func TestNewClient_InsecureTransport(t *testing.T) {
	c := NewClient("https://worker:8080", DefaultConfig(), nil)

	transport, ok := c.http.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.TLSClientConfig)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
}

func TestNewClient_RateLimit(t *testing.T) {
	c := NewClient("http://worker", Config{RateLimit: 5}, nil)
	assert.NotNil(t, c.limiter)
}

func TestClient_FullSequence(t *testing.T) {
	w := workertest.New(t)
	c := NewClient(w.URL(), DefaultConfig(), nil)
	ctx := context.Background()

	sig, err := c.Generate(ctx, DefaultJobTemplate())
	require.NoError(t, err)
	assert.Equal(t, workertest.DefaultSignature, sig)

	gen := w.Body(workertest.StepGenerate)
	assert.Equal(t, "twitter-scraper", gen["type"])
	args, ok := gen["arguments"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(22), args["max_results"])
	assert.Equal(t, "#AI trending", args["query"])
	assert.Equal(t, "searchbyquery", args["type"])

	jobID, err := c.Submit(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, workertest.DefaultJobID, jobID)
	assert.Equal(t, "ey/job/sig", w.Body(workertest.StepSubmit)["encrypted_job"])

	statusSig, err := c.Poll(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, workertest.DefaultStatusSignature, statusSig)

	result, err := c.Finalize(ctx, sig, statusSig)
	require.NoError(t, err)
	assert.Equal(t, float64(1), result["count"])

	fin := w.Body(workertest.StepFinalize)
	assert.Equal(t, "ey/status/sig", fin["encrypted_result"])
	assert.Equal(t, "ey/job/sig", fin["encrypted_request"])

	assert.Equal(t, []string{
		workertest.StepGenerate,
		workertest.StepSubmit,
		workertest.StepPoll,
		workertest.StepFinalize,
	}, w.Calls())
	assert.Contains(t, w.Paths(), "/job/status/"+workertest.DefaultJobID)
}

func TestClient_Submit_MissingUID(t *testing.T) {
	w := workertest.New(t).OmitUID()
	c := NewClient(w.URL(), DefaultConfig(), nil)

	jobID, err := c.Submit(context.Background(), "sig")
	require.NoError(t, err)
	assert.Empty(t, jobID)
}

func TestClient_Submit_NumericUID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"small integer", `{"uid": 42}`, "42"},
		{"large integer", `{"uid": 1000000}`, "1000000"},
		{"beyond float precision", `{"uid": 12345678901234567890}`, "12345678901234567890"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, DefaultConfig(), nil)
			jobID, err := c.Submit(context.Background(), "sig")
			require.NoError(t, err)
			assert.Equal(t, tt.want, jobID)
		})
	}
}

func TestClient_Poll_EscapesJobID(t *testing.T) {
	w := workertest.New(t)
	c := NewClient(w.URL(), DefaultConfig(), nil)

	_, err := c.Poll(context.Background(), "a b")
	require.NoError(t, err)
	assert.Equal(t, []string{"/job/status/a%20b"}, w.Paths())
}

func TestClient_UnexpectedStatus(t *testing.T) {
	tests := []struct {
		name string
		step string
		call func(c *Client) error
	}{
		{
			name: "generate",
			step: workertest.StepGenerate,
			call: func(c *Client) error {
				_, err := c.Generate(context.Background(), DefaultJobTemplate())
				return err
			},
		},
		{
			name: "submit",
			step: workertest.StepSubmit,
			call: func(c *Client) error {
				_, err := c.Submit(context.Background(), "sig")
				return err
			},
		},
		{
			name: "poll",
			step: workertest.StepPoll,
			call: func(c *Client) error {
				_, err := c.Poll(context.Background(), "id")
				return err
			},
		},
		{
			name: "finalize",
			step: workertest.StepFinalize,
			call: func(c *Client) error {
				_, err := c.Finalize(context.Background(), "sig", "status")
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := workertest.New(t).FailAt(tt.step, http.StatusInternalServerError)
			c := NewClient(w.URL(), DefaultConfig(), nil)

			err := tt.call(c)
			require.Error(t, err)
			assert.True(t, IsUnexpectedStatus(err))

			var reqErr *RequestError
			require.True(t, errors.As(err, &reqErr))
			assert.Equal(t, tt.step, reqErr.Op)
			assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
			assert.Contains(t, reqErr.Error(), "status 500")
		})
	}
}

func TestClient_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, DefaultConfig(), nil)
	_, err := c.Generate(context.Background(), DefaultJobTemplate())
	require.Error(t, err)

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, 0, reqErr.StatusCode)
	assert.False(t, IsUnexpectedStatus(err))
}

func TestClient_Finalize_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, DefaultConfig(), nil)
	_, err := c.Finalize(context.Background(), "a", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_ContextCancelled(t *testing.T) {
	w := workertest.New(t).Delay(time.Second)
	c := NewClient(w.URL(), DefaultConfig(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Generate(ctx, DefaultJobTemplate())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
