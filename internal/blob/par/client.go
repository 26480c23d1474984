// Package par talks to an object store through a pre-authenticated request
// (PAR) URL: the object key is appended to the URL and plain GET/PUT requests
// need no credentials.
package par

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dvloznov/kids-bank/internal/blob"
)

// Client is the PAR implementation of blob.Transport.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given URL prefix. A nil httpClient
// uses a client with a 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// Upload implements blob.Transport.
func (c *Client) Upload(ctx context.Context, key string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+key, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("Upload: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("Upload: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("Upload: PAR upload failed: %s", resp.Status)
	}
	return resp.Header.Get("ETag"), nil
}

// Download implements blob.Transport.
func (c *Client) Download(ctx context.Context, key, etag string) (*blob.Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+key, nil)
	if err != nil {
		return nil, fmt.Errorf("Download: build request: %w", err)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Download: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &blob.Download{NotModified: true, ETag: etag}, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("Download: PAR download failed: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Download: read body: %w", err)
	}
	return &blob.Download{Data: data, ETag: resp.Header.Get("ETag")}, nil
}

// Ensure Client implements blob.Transport.
var _ blob.Transport = (*Client)(nil)
