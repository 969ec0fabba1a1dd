package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"autodub/internal/config"
	"autodub/internal/jobs"
)

// apiClient talks to a running daemon over its HTTP API.
type apiClient struct {
	base   string
	client *http.Client
}

func newAPIClient(cfg *config.Config) *apiClient {
	return &apiClient{
		base:   "http://" + cfg.Paths.APIBind,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w (is `autodub serve` running?)", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func (c *apiClient) listJobs(ctx context.Context) ([]jobs.Job, error) {
	var payload struct {
		Jobs []jobs.Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Jobs, nil
}

func (c *apiClient) getJob(ctx context.Context, id string) (jobs.Job, error) {
	var job jobs.Job
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+id, nil, &job)
	return job, err
}

func (c *apiClient) submitJob(ctx context.Context, spec jobs.Spec) (jobs.Job, error) {
	var job jobs.Job
	err := c.do(ctx, http.MethodPost, "/api/jobs", spec, &job)
	return job, err
}

func (c *apiClient) deleteJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+id, nil, nil)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return strings.TrimSpace(s[:max-1]) + "…"
}
