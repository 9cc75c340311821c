package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"platter/internal/config"
)

// Encoder turns image bytes into an embedding vector.
type Encoder interface {
	Embed(ctx context.Context, imageData []byte) (Vector, error)
	ModelVersion() string
}

// Client is an Encoder backed by an HTTP encoder sidecar. The sidecar owns
// the model weights; the client pins the model version it expects and refuses
// to mix versions.
type Client struct {
	baseURL      string
	modelVersion string
	httpClient   *http.Client
	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithClientHTTP overrides the HTTP client used for encoder requests.
func WithClientHTTP(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithRetries sets the retry budget for transient encoder failures.
func WithRetries(maxRetries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if backoff > 0 {
			c.retryBackoff = backoff
		}
	}
}

// NewClient builds an encoder client from configuration.
func NewClient(cfg config.Encoder, opts ...ClientOption) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		modelVersion: cfg.ModelVersion,
		httpClient:   &http.Client{Timeout: timeout},
		maxRetries:   2,
		retryBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// ModelVersion returns the pinned model version.
func (c *Client) ModelVersion() string {
	return c.modelVersion
}

type embedRequest struct {
	Image string `json:"image"`
}

type embedResponse struct {
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

type modelResponse struct {
	ModelVersion string `json:"model_version"`
}

// Embed decodes the image header locally to distinguish bad input from
// backend failures, then asks the sidecar for the embedding.
func (c *Client) Embed(ctx context.Context, imageData []byte) (Vector, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("%w: empty image data", ErrDecode)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(imageData)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	payload, err := json.Marshal(embedRequest{
		Image: base64.StdEncoding.EncodeToString(imageData),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrEncoder, err)
	}

	var resp embedResponse
	if err := c.doJSON(ctx, http.MethodPost, "/embed/image", payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Vector) == 0 {
		return nil, fmt.Errorf("%w: backend returned empty vector", ErrEncoder)
	}
	if resp.ModelVersion != "" && resp.ModelVersion != c.modelVersion {
		return nil, fmt.Errorf("%w: backend model %q does not match pinned %q",
			ErrEncoder, resp.ModelVersion, c.modelVersion)
	}
	return Vector(resp.Vector).Normalized(), nil
}

// VerifyModel checks that the sidecar serves the pinned model version.
// Called at startup so a version drift fails loudly instead of silently
// producing incomparable vectors.
func (c *Client) VerifyModel(ctx context.Context) error {
	var resp modelResponse
	if err := c.doJSON(ctx, http.MethodGet, "/model", nil, &resp); err != nil {
		return err
	}
	if resp.ModelVersion != c.modelVersion {
		return fmt.Errorf("%w: backend serves model %q, configuration pins %q",
			ErrEncoder, resp.ModelVersion, c.modelVersion)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.retryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrEncoder, ctx.Err())
			}
		}
		lastErr = c.attempt(ctx, method, path, body, out)
		if lastErr == nil {
			return nil
		}
		if !retryableEncoderErr(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrEncoder, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &encoderHTTPError{retryable: true, err: fmt.Errorf("%w: %v", ErrEncoder, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		inner := fmt.Errorf("%w: status %d: %s", ErrEncoder, resp.StatusCode, strings.TrimSpace(string(data)))
		return &encoderHTTPError{retryable: resp.StatusCode >= 500, err: inner}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrEncoder, err)
	}
	return nil
}

type encoderHTTPError struct {
	retryable bool
	err       error
}

func (e *encoderHTTPError) Error() string { return e.err.Error() }

func (e *encoderHTTPError) Unwrap() error { return e.err }

func retryableEncoderErr(err error) bool {
	var httpErr *encoderHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.retryable
	}
	return false
}
