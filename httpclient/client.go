package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/myoutlet-admin/internal/errors"
	"github.com/jrsteele09/myoutlet-admin/internal/metrics"
)

const maxErrorBody = 4 << 10

// Client sends requests to the backend API through a Transport.
type Client struct {
	baseURL   string
	http      *http.Client
	transport *Transport
	metrics   *metrics.Metrics
}

type Option func(*Client)

// WithBaseTransport sets the transport below the auth layer.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport.base = rt
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithOnLogout sets the hook run after a failed refresh cleared the session.
func WithOnLogout(fn func(ctx context.Context)) Option {
	return func(c *Client) {
		c.transport.onLogout = fn
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
		c.transport.metrics = m
	}
}

// New returns a client for the backend rooted at baseURL.
func New(baseURL string, tokens Tokens, refresher Refresher, opts ...Option) *Client {
	t := NewTransport(nil, tokens, refresher)
	c := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		transport: t,
		http:      &http.Client{Transport: t, Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewRequest builds a request for a backend path. Bodies of type *bytes.Reader, *bytes.Buffer
// and *strings.Reader can be replayed after a refresh.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
}

// Do sends req. Only transport failures are returned as errors; every status is a response.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	c.metrics.BackendResponse(strconv.Itoa(resp.StatusCode))
	return resp, nil
}

// DoJSON sends in as JSON (when not nil) and decodes a 2xx response into out (when not nil).
// Other statuses return a *errors.StatusError.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("[httpclient DoJSON] encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.NewRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.DoDecode(req, out)
}

// DoDecode sends req and decodes a 2xx JSON response into out (when not nil).
func (c *Client) DoDecode(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return errors.Wrapf(err, "[httpclient] %s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	if err := CheckStatus(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "[httpclient] read %s %s", req.Method, req.URL.Path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "[httpclient] decode %s %s", req.Method, req.URL.Path)
	}
	return nil
}

// CheckStatus returns a *errors.StatusError for a non-2xx response. The body is consumed on error.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &errors.StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(data)),
	}
	if resp.Request != nil {
		se.Method = resp.Request.Method
		se.Path = resp.Request.URL.Path
	}
	return se
}
