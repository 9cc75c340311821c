package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"platter/internal/config"
)

// apiClient is a thin HTTP client for the daemon API.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(cfg *config.Config) *apiClient {
	return &apiClient{
		baseURL:    "http://" + cfg.Paths.APIBind,
		httpClient: &http.Client{Timeout: 15 * time.Minute},
	}
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("daemon returned status %d", e.Status)
}

func (c *apiClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("is platterd running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &apiError{Status: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *apiClient) postJSON(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, http.MethodPost, path, body, contentType, out)
}

// postFile uploads one local file as a multipart form under the "file" field.
func (c *apiClient) postFile(ctx context.Context, path, filePath string, out any) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", filePath, err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, &buf, writer.FormDataContentType(), out)
}

// getRaw fetches a path and streams the body to w.
func (c *apiClient) getRaw(ctx context.Context, path string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("is platterd running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &apiError{Status: resp.StatusCode}
	}
	_, err = io.Copy(w, resp.Body)
	return err
}
