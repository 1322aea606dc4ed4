// Package sportsapi is the TheSports.com football API client shared by
// the fetch and merge stages. Failures never abort a cycle; they come
// back as inline error documents so a partial fetch still produces a
// complete frame.
package sportsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alextrx818/matchpipe/internal/app/config"
)

const defaultConcurrency = 30

// Client issues authenticated GET requests against the provider API.
// A counting semaphore bounds concurrent requests across all fan-outs
// sharing the client.
type Client struct {
	baseURL string
	user    string
	secret  string
	http    *http.Client
	sem     chan struct{}
}

// NewClient builds a Client from the resolved API configuration.
func NewClient(cfg config.APIConfig) *Client {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		user:    cfg.User,
		secret:  cfg.Secret,
		http:    &http.Client{Timeout: timeout},
		sem:     make(chan struct{}, concurrency),
	}
}

// ErrorDoc is the inline failure payload recorded in place of a
// response body when a request fails.
type ErrorDoc struct {
	Error    string            `json:"error"`
	Endpoint string            `json:"endpoint"`
	Params   map[string]string `json:"params,omitempty"`
}

// Fetch GETs an endpoint with auth and extra query params. The returned
// document is either the provider's JSON body or an inline ErrorDoc;
// the error return is reserved for context cancellation.
func (c *Client) Fetch(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	doc, err := c.get(ctx, endpoint, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return errorDoc(endpoint, params, err), nil
	}
	return doc, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint url: %w", err)
	}
	q := u.Query()
	q.Set("user", c.user)
	q.Set("secret", c.secret)
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s: status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("request %s: invalid json body", endpoint)
	}
	return json.RawMessage(body), nil
}

func errorDoc(endpoint string, params map[string]string, err error) json.RawMessage {
	doc, mErr := json.Marshal(ErrorDoc{Error: err.Error(), Endpoint: endpoint, Params: params})
	if mErr != nil {
		return json.RawMessage(fmt.Sprintf(`{"error":%q,"endpoint":%q}`, err.Error(), endpoint))
	}
	return doc
}
