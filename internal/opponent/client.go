// Package opponent talks to the move-selection backend over HTTP.
package opponent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"llmchess/internal/core"
)

type Client struct {
	BaseURL    string
	APIKey     string // optional per-request provider key
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// SetBaseURL updates the API base URL for the client
func (c *Client) SetBaseURL(url string) {
	c.BaseURL = strings.TrimRight(url, "/")
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	url := c.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set(core.KeyHeader, c.APIKey)
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		req.Header.Set(core.RequestIDHeader, id)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}

	if resp.StatusCode >= 400 {
		return newStatusError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}

	return nil
}

type requestIDKey struct{}

// WithRequestID attaches an id sent as X-Request-ID on requests made with ctx
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// API Methods

// Move asks the backend to choose a move for fen. An empty model leaves the
// choice to the backend.
func (c *Client) Move(ctx context.Context, fen, model string) (*core.MoveResponse, error) {
	if _, ok := ctx.Value(requestIDKey{}).(string); !ok {
		ctx = WithRequestID(ctx, uuid.NewString())
	}
	req := &core.MoveRequest{FEN: fen, Model: model}
	var resp core.MoveResponse
	if err := c.doRequest(ctx, http.MethodPost, "/move", req, &resp); err != nil {
		return nil, err
	}
	if resp.Move == "" {
		return nil, fmt.Errorf("backend returned an empty move")
	}
	return &resp, nil
}

func (c *Client) Health(ctx context.Context) (*core.HealthResponse, error) {
	var resp core.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Models(ctx context.Context) ([]string, error) {
	var models []string
	if err := c.doRequest(ctx, http.MethodGet, "/config/models", nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// ConfigureCredential submits a provider key; the backend validates it
// before accepting it
func (c *Client) ConfigureCredential(ctx context.Context, key string) error {
	req := &core.APIKeyRequest{APIKey: key}
	var resp core.APIKeyResponse
	return c.doRequest(ctx, http.MethodPost, "/config/api-key", req, &resp)
}
