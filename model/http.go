package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	mimeJSON          = "application/json"
	headerContentType = "Content-Type"
)

// apiClient is the JSON-over-HTTP plumbing shared by the REST backends.
type apiClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// do sends a request with an optional JSON body, returning the status and raw body.
func (c *apiClient) do(ctx context.Context, method, url string, in any) (int, []byte, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

// postJSON posts in to url and decodes a 200 response into out.
func (c *apiClient) postJSON(ctx context.Context, url string, in, out any) error {
	status, body, err := c.do(ctx, http.MethodPost, url, in)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", status, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
	}
	return nil
}

// setHeaders sets common headers for API requests.
func (c *apiClient) setHeaders(req *http.Request) {
	if req.Body != nil {
		req.Header.Set(headerContentType, mimeJSON)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
