package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a thin JSON client for the external collaborator services
// (access/permission provider, push gateway).
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func New(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: baseURL,
	}
}

// PostJSON sends body as JSON to path and decodes the response into result.
func (c *Client) PostJSON(ctx context.Context, path string, body any, result any) error {
	_, err := c.doJSON(ctx, http.MethodPost, path, body, result)
	return err
}

// GetJSON issues a GET against path and decodes the response into result.
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	_, err := c.doJSON(ctx, http.MethodGet, path, nil, result)
	return err
}

// PostJSONStatus is PostJSON but also reports the HTTP status code, for
// callers that triage failures by status (push delivery).
func (c *Client) PostJSONStatus(ctx context.Context, path string, body any, result any) (int, error) {
	return c.doJSON(ctx, http.MethodPost, path, body, result)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("http error: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response body: %w", err)
		}
	}
	return resp.StatusCode, nil
}
