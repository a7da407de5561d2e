package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// RestClient is a thin JSON client shared by the provider adapters.
// Headers set on the client are attached to every request.
type RestClient struct {
	BaseURL string
	headers map[string]string
	client  *http.Client
}

func NewRestClient(baseURL string) *RestClient {
	return &RestClient{
		BaseURL: baseURL,
		headers: make(map[string]string),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// WithBearerToken sets the Authorization header for all requests.
func (c *RestClient) WithBearerToken(token string) *RestClient {
	c.headers["Authorization"] = "Bearer " + token
	return c
}

// WithHeader sets an arbitrary header for all requests.
func (c *RestClient) WithHeader(key, value string) *RestClient {
	c.headers[key] = value
	return c
}

// DoRequest sends a JSON request to BaseURL+endpoint and returns the
// raw response body. Absolute endpoints (polling URLs handed back by
// the provider) are used as-is. Status codes >= 400 are returned as
// errors with the body included.
func (c *RestClient) DoRequest(ctx context.Context, method, endpoint string, data interface{}) ([]byte, error) {
	var reqBody []byte
	var err error

	if data != nil {
		reqBody, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("error marshaling request: %w", err)
		}
	}

	requestURL := c.BaseURL + endpoint
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		requestURL = endpoint
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Download fetches a generated asset. Generations can be large, so the
// download client gets its own generous timeout.
func Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating download request: %w", err)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading asset: %w", err)
	}

	return data, nil
}

// AssetFilename extracts a usable filename from an asset URL, falling
// back when the URL path carries no extension.
func AssetFilename(rawURL, fallback string) string {
	if parsed, err := url.Parse(rawURL); err == nil {
		if name := path.Base(parsed.Path); path.Ext(name) != "" {
			return name
		}
	}
	return fallback
}

// PollConfig bounds a fixed-interval poll loop.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

func DefaultPollConfig() PollConfig {
	return PollConfig{Interval: 5 * time.Second, MaxAttempts: 60}
}

// Await polls fn at a fixed interval until it reports done, the context
// is cancelled, or the attempt budget is exhausted.
func Await[T any](ctx context.Context, cfg PollConfig, fn func(ctx context.Context) (T, bool, error)) (T, error) {
	var zero T

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, done, err := fn(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ticker.C:
		}
	}

	return zero, fmt.Errorf("%w after %d attempts", ErrGenerationTimeout, cfg.MaxAttempts)
}
