// Package remote executes circuits against an HTTP execution service.
// The wire format is msgpack: the same circuit encoding the cache
// stores, plus the shot count, posted to /v1/execute.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/qubitlab/subisom/internal/backend"
	"github.com/qubitlab/subisom/internal/circuit"
)

// Client is a backend.Backend that ships circuits to a remote
// execution service.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     log.With().Str("client", "remote-backend").Logger(),
	}
}

type executeRequest struct {
	Circuit *circuit.Circuit `msgpack:"circuit"`
	Shots   int              `msgpack:"shots"`
}

type executeResponse struct {
	Bitstrings [][]byte `msgpack:"bitstrings"`
	Error      string   `msgpack:"error,omitempty"`
}

// Name identifies the backend in logs and outcomes.
func (c *Client) Name() string { return "remote" }

// Execute posts the circuit and returns one bit-string per shot.
// Transport failures and 5xx responses wrap backend.ErrExecution so
// the caller's retry policy treats them as transient; 4xx responses
// mean the service rejected the circuit itself and are permanent.
func (c *Client) Execute(ctx context.Context, circ *circuit.Circuit, shots int) ([]backend.Bitstring, error) {
	if shots < 1 {
		return nil, fmt.Errorf("remote: shots must be positive, got %d", shots)
	}

	payload, err := msgpack.Marshal(executeRequest{Circuit: circ, Shots: shots})
	if err != nil {
		return nil, fmt.Errorf("remote: failed to encode request: %w", err)
	}

	url := c.baseURL + "/v1/execute"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("remote: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/msgpack")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: request failed: %v", backend.ErrExecution, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", backend.ErrExecution, err)
	}

	switch {
	case resp.StatusCode >= 500:
		c.log.Warn().Int("status", resp.StatusCode).Msg("Execution service error")
		return nil, fmt.Errorf("%w: service returned status %d", backend.ErrExecution, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("remote: service rejected circuit (status %d): %s", resp.StatusCode, remoteError(body))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: unexpected status %d", backend.ErrExecution, resp.StatusCode)
	}

	var out executeResponse
	if err := msgpack.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", backend.ErrExecution, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s", backend.ErrExecution, out.Error)
	}
	if len(out.Bitstrings) != shots {
		return nil, fmt.Errorf("%w: requested %d shots, got %d", backend.ErrExecution, shots, len(out.Bitstrings))
	}

	results := make([]backend.Bitstring, len(out.Bitstrings))
	for i, bits := range out.Bitstrings {
		results[i] = backend.Bitstring(bits)
	}
	return results, nil
}

// remoteError extracts the error message from a rejection body, which
// is msgpack on well-behaved services and free text otherwise.
func remoteError(body []byte) string {
	var out executeResponse
	if err := msgpack.Unmarshal(body, &out); err == nil && out.Error != "" {
		return out.Error
	}
	if len(body) > 0 {
		return string(body)
	}
	return "no error detail"
}
