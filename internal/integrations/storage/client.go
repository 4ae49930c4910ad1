// Package storage uploads payslip documents to an S3-compatible object
// store behind a Supabase-style REST surface.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client uploads and signs object URLs.
type Client struct {
	baseURL    string
	bucket     string
	serviceKey string
	http       *http.Client
}

// NewClient constructs a Client.
func NewClient(baseURL, bucket, serviceKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload stores content at the given object path, replacing any
// previous version.
func (c *Client) Upload(ctx context.Context, path, contentType string, content io.Reader) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, strings.TrimLeft(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, content)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("storage: upload %s returned %d", path, resp.StatusCode)
	}
	return nil
}

// SignedURL returns a time-limited download URL for the object.
func (c *Client) SignedURL(ctx context.Context, path string, expiresIn time.Duration) (string, error) {
	url := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", c.baseURL, c.bucket, strings.TrimLeft(path, "/"))
	payload, err := json.Marshal(map[string]any{"expiresIn": int(expiresIn.Seconds())})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("storage: sign %s returned %d", path, resp.StatusCode)
	}
	var out struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return c.baseURL + "/storage/v1" + out.SignedURL, nil
}

// Remove deletes an object.
func (c *Client) Remove(ctx context.Context, path string) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, strings.TrimLeft(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("storage: remove %s returned %d", path, resp.StatusCode)
	}
	return nil
}
