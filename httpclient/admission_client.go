/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/windowlimit/go-windowlimit/httpserver"
)

const admissionsPath = "/api/v1/admissions/"

// UnexpectedStatusError is returned when the admission API responds with a non-200 status code.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}

// AdmissionClient talks to the admission API of a windowlimit server.
type AdmissionClient struct {
	baseURL string
	client  *http.Client
}

// NewAdmissionClient creates a client for the server at baseURL (e.g. "http://127.0.0.1:8080").
// If client is nil, http.DefaultClient is used.
func NewAdmissionClient(baseURL string, client *http.Client) (*AdmissionClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q should have http or https scheme", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &AdmissionClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}, nil
}

// Admit asks the server to admit one request for the key.
func (c *AdmissionClient) Admit(ctx context.Context, key string) (httpserver.AdmissionResponse, error) {
	var resp httpserver.AdmissionResponse
	err := c.do(ctx, http.MethodPost, key, &resp)
	return resp, err
}

// Usage returns the number of admissions of the key in the current window without recording a new one.
func (c *AdmissionClient) Usage(ctx context.Context, key string) (httpserver.UsageResponse, error) {
	var resp httpserver.UsageResponse
	err := c.do(ctx, http.MethodGet, key, &resp)
	return resp, err
}

func (c *AdmissionClient) do(ctx context.Context, method, key string, respData interface{}) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+admissionsPath+url.PathEscape(key), http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &UnexpectedStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err = json.NewDecoder(resp.Body).Decode(respData); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
