// Package httpclient is the backend client of a session. It attaches the access token to every
// request and recovers from an expired token by refreshing once and replaying the request.
package httpclient

import (
	"context"
	"io"
	"net/http"

	"github.com/jrsteele09/myoutlet-admin/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Tokens is the credential storage of the session.
type Tokens interface {
	GetAccessToken() (string, bool)
	GetRefreshToken() (string, bool)
	Clear() error
}

// Refresher is the session's refresh coordinator.
type Refresher interface {
	RefreshInitiated(ctx context.Context) (token string, initiated bool, err error)
	Join(resolve func(string), reject func(error)) bool
}

type retriedKey struct{}

// MarkRetried returns ctx flagged so that a 401 response is returned as is.
func MarkRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

// IsRetried reports whether the request has already been replayed after a refresh.
func IsRetried(req *http.Request) bool {
	retried, _ := req.Context().Value(retriedKey{}).(bool)
	return retried
}

// Transport wraps an http.RoundTripper with bearer authentication and refresh-on-401.
type Transport struct {
	base      http.RoundTripper
	tokens    Tokens
	refresher Refresher
	onLogout  func(ctx context.Context)
	metrics   *metrics.Metrics
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport wraps base. If base is nil, http.DefaultTransport is used.
func NewTransport(base http.RoundTripper, tokens Tokens, refresher Refresher) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, tokens: tokens, refresher: refresher}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(t.decorate(req))
	if err != nil {
		return nil, err
	}
	return t.handleResponse(req, resp)
}

// decorate returns a copy of req carrying the current access token, if any.
func (t *Transport) decorate(req *http.Request) *http.Request {
	out := req.Clone(req.Context())
	if token, ok := t.tokens.GetAccessToken(); ok {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	return out
}

func (t *Transport) handleResponse(req *http.Request, resp *http.Response) (*http.Response, error) {
	if resp.StatusCode != http.StatusUnauthorized || IsRetried(req) {
		return resp, nil
	}
	if _, ok := t.tokens.GetRefreshToken(); !ok {
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		log.Warn().Str("path", req.URL.Path).Msg("Request body cannot be replayed, returning 401")
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	token, err := t.awaitRefresh(req.Context())
	if err != nil {
		return nil, err
	}
	return t.replay(req, token)
}

// awaitRefresh joins the refresh in flight or starts one. Only the initiator clears the
// session on failure; waiters just receive the error.
func (t *Transport) awaitRefresh(ctx context.Context) (string, error) {
	type outcome struct {
		token string
		err   error
	}
	ch := make(chan outcome, 1)
	if t.refresher.Join(
		func(token string) { ch <- outcome{token: token} },
		func(err error) { ch <- outcome{err: err} },
	) {
		select {
		case o := <-ch:
			return o.token, o.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	token, initiated, err := t.refresher.RefreshInitiated(ctx)
	if err != nil && initiated {
		if clearErr := t.tokens.Clear(); clearErr != nil {
			log.Err(clearErr).Msg("Failed to clear session after refresh failure")
		}
		if t.onLogout != nil {
			t.onLogout(ctx)
		}
	}
	return token, err
}

func (t *Transport) replay(req *http.Request, token string) (*http.Response, error) {
	out := req.Clone(MarkRetried(req.Context()))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}
	out.Header.Set("Authorization", "Bearer "+token)
	t.metrics.Replay()
	return t.base.RoundTrip(out)
}
