// Package ai provides the HTTP client for the remote inference worker.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ClientError represents an error from the inference worker.
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotConfigured
	ErrTypeTimeout
	ErrTypeConnection
	ErrTypeUpstream
	ErrTypeInvalidResponse
)

// ErrNotConfigured is returned when no worker URL is set.
var ErrNotConfigured = &ClientError{Type: ErrTypeNotConfigured, Message: "AI worker URL is not configured"}

// maxResponseBytes caps how much of a worker reply is read.
const maxResponseBytes = 1 << 20

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Client calls the inference worker. It is safe for concurrent use.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient returns a client for the worker at url. A zero timeout leaves
// cancellation to the request context.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate sends the trimmed prompt and returns the worker's reply text. An
// empty reply is returned as "" with a nil error.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.url == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(generateRequest{Prompt: strings.TrimSpace(prompt)})
	if err != nil {
		return "", &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
		}
		return "", &ClientError{Type: ErrTypeConnection, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &ClientError{Type: ErrTypeConnection, Message: "failed to read response", Cause: err}
	}

	var out generateResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("worker returned %d", resp.StatusCode)
		if decodeErr == nil && out.Error != "" {
			msg = out.Error
		}
		return "", &ClientError{Type: ErrTypeUpstream, Message: msg, StatusCode: resp.StatusCode}
	}
	if decodeErr != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: decodeErr}
	}
	if out.Error != "" {
		return "", &ClientError{Type: ErrTypeUpstream, Message: out.Error, StatusCode: resp.StatusCode}
	}

	return out.Text, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
