// Package client wraps HTTP interaction with the lab scheduling REST
// API. Each resource gets a small service type hanging off Client;
// responses decode into typed structs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labops/runcontrol/pkg/env"
)

// Config captures the connection settings for the scheduling API.
type Config struct {
	BaseURL     *url.URL
	Subdomain   string
	ProjectID   string
	HTTPTimeout time.Duration
}

// LoadConfig builds a client configuration from the processed
// environment.
func LoadConfig() (*Config, error) {
	vars := env.Variables()

	u, err := url.Parse(vars.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	return &Config{
		BaseURL:     u,
		Subdomain:   vars.Subdomain,
		ProjectID:   vars.ProjectID,
		HTTPTimeout: vars.HTTPTimeout,
	}, nil
}

// Client wraps HTTP interaction with the scheduling REST API.
type Client struct {
	baseURL    *url.URL
	subdomain  string
	projectID  string
	httpClient *http.Client
}

// New constructs a client from the provided configuration.
func New(cfg *Config) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		subdomain:  cfg.Subdomain,
		projectID:  cfg.ProjectID,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// prefix returns the subdomain/project scope every run-level path
// lives under.
func (c *Client) prefix() string {
	return fmt.Sprintf("/%s/projects/%s", c.subdomain, c.projectID)
}

func (c *Client) resolve(path string, queries ...string) string {
	raw := strings.TrimSuffix(c.baseURL.String(), "/") + path
	filtered := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.Trim(q, "?& ")
		if q != "" {
			filtered = append(filtered, q)
		}
	}

	if len(filtered) == 0 {
		return raw
	}

	return raw + "?" + strings.Join(filtered, "&")
}

func decodeBody(body io.ReadCloser, target any) error {
	decoder := json.NewDecoder(body)

	decodeErr := decoder.Decode(target)
	closeErr := body.Close()
	if decodeErr != nil {
		if closeErr != nil {
			return errors.Join(decodeErr, closeErr)
		}
		return decodeErr
	}
	return closeErr
}

func (c *Client) do(ctx context.Context, method, path string, body, v any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		errStatus := fmt.Errorf("request failed: %s", resp.Status)
		if err := resp.Body.Close(); err != nil {
			return errors.Join(errStatus, err)
		}
		return errStatus
	}

	if v == nil {
		return resp.Body.Close()
	}

	return decodeBody(resp.Body, v)
}

// Runs exposes run and instruction API helpers.
func (c *Client) Runs() *RunsService {
	return &RunsService{client: c}
}

// Schedules exposes schedule request API helpers.
func (c *Client) Schedules() *SchedulesService {
	return &SchedulesService{client: c}
}

// Workcells exposes workcell and session API helpers.
func (c *Client) Workcells() *WorkcellsService {
	return &WorkcellsService{client: c}
}

// Stats exposes scheduler statistics helpers.
func (c *Client) Stats() *StatsService {
	return &StatsService{client: c}
}
