// Package teamwork logs practice time against client projects once a
// payroll run wraps up.
package teamwork

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Project is one Teamwork project.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TimeEntry is a unit of logged work.
type TimeEntry struct {
	Description string `json:"description"`
	Date        string `json:"date"`
	Hours       int    `json:"hours"`
	Minutes     int    `json:"minutes"`
	IsBillable  bool   `json:"isbillable"`
}

// Client talks the Teamwork v1 JSON API with token basic auth.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
}

// NewClient constructs a Client.
func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// ListProjects returns active projects.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var payload struct {
		Projects []Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects.json", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Projects, nil
}

// LogTime records a time entry against the given project.
func (c *Client) LogTime(ctx context.Context, projectID string, entry TimeEntry) error {
	body := map[string]any{"time-entry": entry}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/projects/%s/time_entries.json", projectID), body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.apiToken, "x")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("teamwork: %s %s returned %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
