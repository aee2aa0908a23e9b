// ABOUTME: Authenticated request executor for the ARIA remote API.
// ABOUTME: Obtains a bearer token, dispatches REST or gateway calls, decodes JSON.

package aria

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// ClientConfig holds configuration for a Client.
type ClientConfig struct {
	Session    *Session
	HTTPClient *http.Client // defaults to http.DefaultClient
	Logger     *slog.Logger
}

// Client executes authenticated calls against the ARIA remote API. It never
// retries and never refreshes an already-valid token mid-call; a token that
// expires between acquisition and use is not detected until the next call.
type Client struct {
	session    *Session
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client bound to the given session.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Session == nil {
		return nil, errors.New("session is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		session:    cfg.Session,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Execute performs one authenticated call against the remote API. A nil body
// issues a GET, anything else a POST with a JSON body. Non-2xx statuses yield
// an *APIError carrying the status line; the body of a failed response is not
// read. A 2xx body is decoded verbatim (array, object, or null) with no shape
// validation. If no valid token can be obtained the call fails before any
// request is attempted.
func (c *Client) Execute(ctx context.Context, path string, body any, query url.Values) (any, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, err
	}

	target := c.session.BaseURL() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var req *http.Request
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
	} else {
		payload, merr := json.Marshal(body)
		if merr != nil {
			return nil, fmt.Errorf("encoding request body: %w", merr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("aria request", "method", req.Method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling aria api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var result any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return result, nil
}

// Process sends a typed request through the gateway endpoint, wrapping the
// fields in the request envelope.
func (c *Client) Process(ctx context.Context, requestType string, fields map[string]any) (any, error) {
	return c.Execute(ctx, ProcessPath, WrapEnvelope(requestType, fields), nil)
}
