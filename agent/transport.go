package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// UploadResult is the gateway's response to an accepted upload. A duplicate
// response means the server already holds these bytes and counts as success.
type UploadResult struct {
	Accepted     bool   `json:"accepted"`
	Duplicate    bool   `json:"duplicate"`
	SubmissionId string `json:"submissionId"`
	Parsed       bool   `json:"parsed"`
}

// FatalUploadError is a 4xx rejection. Retrying cannot fix bad credentials or
// a malformed request, so the retry loop gives up immediately.
type FatalUploadError struct {
	StatusCode int
	Body       string
}

func (e *FatalUploadError) Error() string {
	return fmt.Sprintf("upload rejected with status %d: %s", e.StatusCode, e.Body)
}

// Client uploads gateway export files to the ingest endpoint.
type Client struct {
	BackendURL string
	IngestPath string
	ApiKey     string
	HTTPClient *http.Client
}

func NewClient(cfg *Config) *Client {
	return &Client{
		BackendURL: strings.TrimRight(cfg.BackendURL, "/"),
		IngestPath: cfg.IngestPath,
		ApiKey:     cfg.DeviceApiKey,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload posts one file as multipart form data. Network errors and 5xx are
// returned as-is (retryable); 4xx other than 429 comes back as
// *FatalUploadError.
func (c *Client) Upload(ctx context.Context, storeId string, deviceId string, filename string, sha256 string, content []byte) (*UploadResult, error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	fields := map[string]string{
		"storeId":  storeId,
		"deviceId": deviceId,
		"filename": filename,
		"sha256":   sha256,
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BackendURL+c.IngestPath, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.ApiKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var result UploadResult
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("decode upload response: %w", err)
		}
		return &result, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return nil, &FatalUploadError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	default:
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
}

// Health probes the gateway's startup endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BackendURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// retryDelay computes the pause after the attempt-th failed upload:
// exponential from the base with up to 500ms of jitter, clamped to the
// configured maximum.
func retryDelay(retry RetryConfig, attempt int) time.Duration {
	shift := attempt
	if shift > 20 {
		shift = 20
	}
	delayMs := retry.BaseDelayMs<<shift + rand.Int63n(500)
	if delayMs <= 0 || delayMs > retry.MaxDelayMs {
		delayMs = retry.MaxDelayMs
	}
	return time.Duration(delayMs) * time.Millisecond
}
