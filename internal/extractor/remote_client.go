package extractor

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

// ErrRemoteUnavailable is returned when the remote embedding service cannot be
// reached after retries.
var ErrRemoteUnavailable = errors.New("remote extraction service unavailable")

// RemoteConfig holds the configuration for the remote embedding service
// client.
type RemoteConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Model      string
	Detector   string
	RetryCount int
}

// DefaultRemoteConfig returns a RemoteConfig with sensible defaults.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		BaseURL:    "http://localhost:5005",
		Timeout:    30 * time.Second,
		Model:      "Facenet512",
		Detector:   "retinaface",
		RetryCount: 3,
	}
}

type remoteClient struct {
	httpClient *http.Client
	config     RemoteConfig
}

func newRemoteClient(config RemoteConfig) *remoteClient {
	return &remoteClient{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
	}
}

type representRequest struct {
	Img      string `json:"img"` // base64 encoded image
	Model    string `json:"model"`
	Detector string `json:"detector"`
}

type representResponse struct {
	Results []representResult `json:"results"`
}

type representResult struct {
	Embedding  []float64  `json:"embedding"`
	FacialArea facialArea `json:"facial_area"`
}

type facialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Represent calls POST /represent to localize faces and generate embeddings.
func (c *remoteClient) Represent(ctx context.Context, imageBase64 string) (*representResponse, error) {
	req := representRequest{
		Img:      imageBase64,
		Model:    c.config.Model,
		Detector: c.config.Detector,
	}

	var resp representResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, "/represent", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// maxBackoff is the maximum backoff duration for retries
const maxBackoff = 30 * time.Second

// calculateBackoff returns 1s, 2s, 4s, 8s, etc. up to maxBackoff.
func calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	seconds := 1
	for i := 1; i < attempt && i < 6; i++ {
		seconds *= 2
	}
	return time.Duration(seconds) * time.Second
}

// doRequestWithRetry executes the HTTP request, retrying server errors with
// exponential backoff. Client errors (4xx) are returned immediately.
func (c *remoteClient) doRequestWithRetry(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(attempt)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = c.doRequest(ctx, method, path, body, result)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if isClientError(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("%w: %v", ErrRemoteUnavailable, lastErr)
}

func (c *remoteClient) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}

// isClientError checks if the error carries a 4xx status.
func isClientError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for status := 400; status < 500; status++ {
		if strings.Contains(errStr, fmt.Sprintf("status %d", status)) {
			return true
		}
	}
	return false
}
