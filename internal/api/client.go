package api

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

	"golang.org/x/oauth2"

	appLog "agendaaberta/internal/log"
)

// DefaultTimeout bounds every request unless overridden.
const DefaultTimeout = 10 * time.Second

// Client talks to the office-hours REST API. A Client value is immutable:
// credentials are bound with WithToken, which returns a new Client, so no
// shared default headers are ever mutated.
type Client struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
	tokens    oauth2.TokenSource
	http      *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTransport sets the base RoundTripper (tests, proxies).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// New creates an unauthenticated client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api: base URL is empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: unsupported base URL scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL: baseURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = c.buildHTTPClient()
	return c, nil
}

// WithToken returns a copy of c that authenticates every request with the
// bearer token from ts. A nil ts returns an unauthenticated copy.
func (c *Client) WithToken(ts oauth2.TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	cp.http = cp.buildHTTPClient()
	return &cp
}

// StaticToken wraps a raw access token as a TokenSource.
func StaticToken(access string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: access, TokenType: "Bearer"})
}

// Authenticated reports whether the client carries a credential.
func (c *Client) Authenticated() bool {
	return c.tokens != nil
}

// BaseURL returns the API root without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) buildHTTPClient() *http.Client {
	base := c.transport
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	if c.tokens != nil {
		rt = &oauth2.Transport{Source: c.tokens, Base: base}
	}
	return &http.Client{Timeout: c.timeout, Transport: rt}
}

// do performs one JSON request. path must start and end with "/" as the
// API expects; query may be nil. in is JSON encoded when non-nil; out is
// decoded when non-nil and the response has a body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	op := method + " " + path

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode json body: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		appLog.Error("api request failed", err, "op", op)
		return &NetworkError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	appLog.Debug("api request",
		"op", op,
		"status", resp.StatusCode,
		"authenticated", c.tokens != nil,
		"elapsed", time.Since(started).String(),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{StatusCode: resp.StatusCode, Message: authMessage(payload)}
	case resp.StatusCode == http.StatusBadRequest:
		return parseValidation(payload)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s: decode json response: %w", op, err)
	}
	return nil
}

// listPayload accepts both a raw JSON array and the paginated
// {"results": [...]} envelope.
type listPayload[T any] struct {
	Items []T
}

func (l *listPayload[T]) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &l.Items)
	}
	var env struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return err
	}
	l.Items = env.Results
	return nil
}

func getList[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var list listPayload[T]
	if err := c.do(ctx, http.MethodGet, path, query, nil, &list); err != nil {
		return nil, err
	}
	if list.Items == nil {
		return []T{}, nil
	}
	return list.Items, nil
}
