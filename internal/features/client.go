package features

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/gzhole/claudewatch/internal/config"
)

const activationsPath = "/v1/activations"

var errMalformed = errors.New("malformed response")

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type activationRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Features []string  `json:"features,omitempty"`
}

type activationResponse struct {
	Activations []Activation `json:"activations"`
}

// Client talks to the feature-extraction service over HTTP.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	Retries    uint64
	Backoff    time.Duration
	HTTPClient *http.Client
}

// NewClient builds a client from configuration. The API key is read from the
// environment variable named by api_key_env.
func NewClient(cfg *config.WatchConfig) *Client {
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	return &Client{
		BaseURL:    strings.TrimRight(cfg.FeatureServiceURL, "/"),
		APIKey:     key,
		Model:      cfg.Model,
		Retries:    uint64(cfg.FeatureRetries),
		Backoff:    500 * time.Millisecond,
		HTTPClient: &http.Client{Timeout: cfg.FeatureTimeout()},
	}
}

// statusError carries a non-2xx response so the retry loop can classify it.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("service returned %d: %s", e.code, e.body)
}

// Extract posts the text as a single assistant turn and returns the reported activations.
func (c *Client) Extract(ctx context.Context, text string, ids []string) ([]Activation, error) {
	payload, err := json.Marshal(activationRequest{
		Model:    c.Model,
		Messages: []message{{Role: "assistant", Content: text}},
		Features: ids,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ErrFeatureExtraction, err)
	}

	var out []Activation
	attempt := 0
	b := retry.WithMaxRetries(c.Retries, retry.NewFibonacci(c.backoff()))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		acts, err := c.post(ctx, payload)
		if err != nil {
			if shouldRetry(err) {
				slog.DebugContext(ctx, "activation request failed, retrying", "attempt", attempt, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		out = acts
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFeatureExtraction, c.BaseURL+activationsPath, err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, payload []byte) ([]Activation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+activationsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(truncate(string(body), 200))}
	}

	var parsed activationResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return parsed.Activations, nil
}

// shouldRetry retries transport failures, 429 and 5xx. Context expiry and
// other client errors are permanent.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return !errors.Is(err, errMalformed)
}

func (c *Client) backoff() time.Duration {
	if c.Backoff <= 0 {
		return 500 * time.Millisecond
	}
	return c.Backoff
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
