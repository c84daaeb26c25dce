// Package backend is the client of the restaurant backend API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/myoutlet-admin/httpclient"
	"github.com/jrsteele09/myoutlet-admin/internal/errors"
)

// TokenPair is the body of a token response. RefreshToken is empty when the backend does not
// rotate it.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// SignIn is the result of exchanging a Google ID token.
type SignIn struct {
	TokenPair
	User json.RawMessage `json:"user"`
}

// AuthAPI calls the backend auth endpoints. Its requests carry no session credentials and are
// never refreshed.
type AuthAPI struct {
	baseURL string
	http    *http.Client
}

type AuthOption func(*AuthAPI)

func WithHTTPClient(c *http.Client) AuthOption {
	return func(a *AuthAPI) {
		a.http = c
	}
}

func NewAuthAPI(baseURL string, opts ...AuthOption) *AuthAPI {
	a := &AuthAPI{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RefreshTokens exchanges a refresh token for a new access token. Any non-2xx answer is
// ErrRefreshRejected.
func (a *AuthAPI) RefreshTokens(ctx context.Context, refreshToken string) (string, string, error) {
	var pair TokenPair
	err := a.postJSON(ctx, "/auth/refresh", map[string]string{"refresh_token": refreshToken}, &pair)
	if errors.StatusCode(err) != 0 {
		return "", "", fmt.Errorf("[AuthAPI RefreshTokens] %w: %w", errors.ErrRefreshRejected, err)
	}
	if err != nil {
		return "", "", errors.Wrapf(err, "[AuthAPI RefreshTokens]")
	}
	if pair.AccessToken == "" {
		return "", "", errors.Wrapf(errors.ErrRefreshRejected, "[AuthAPI RefreshTokens] empty access token")
	}
	return pair.AccessToken, pair.RefreshToken, nil
}

// ExchangeGoogleIDToken signs the owner in with a verified Google ID token.
func (a *AuthAPI) ExchangeGoogleIDToken(ctx context.Context, idToken string) (SignIn, error) {
	var out SignIn
	if err := a.postJSON(ctx, "/auth/google/token", map[string]string{"id_token": idToken}, &out); err != nil {
		return SignIn{}, errors.Wrapf(err, "[AuthAPI ExchangeGoogleIDToken]")
	}
	if out.AccessToken == "" {
		return SignIn{}, errors.Wrapf(errors.ErrInvalidToken, "[AuthAPI ExchangeGoogleIDToken] empty access token")
	}
	return out, nil
}

// GoogleAuthURL is the backend brokered Google sign-in. The backend redirects back to
// redirectURI with access_token and user query parameters.
func (a *AuthAPI) GoogleAuthURL(redirectURI, state string) string {
	q := url.Values{}
	if redirectURI != "" {
		q.Set("redirect_uri", redirectURI)
	}
	if state != "" {
		q.Set("state", state)
	}
	if len(q) == 0 {
		return a.baseURL + "/auth/google"
	}
	return a.baseURL + "/auth/google?" + q.Encode()
}

func (a *AuthAPI) postJSON(ctx context.Context, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := httpclient.CheckStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
