package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

type OidcConfig struct {
	OidcProvider *oidc.Provider
	OAuth2Config *oauth2.Config
	OidcVerifier *oidc.IDTokenVerifier
}

// randomToken returns n random bytes, base64url encoded. Used for OAuth state and nonce values.
func randomToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// SetSessionCookie hands the browser its session id for the configured maximum session age.
func (s *Server) SetSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, s.sessionCookie(r, sessionID, int(s.config.GetMaxSessionAge().Seconds())))
}

func (s *Server) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.sessionCookie(r, "", -1))
}

func (s *Server) sessionCookie(r *http.Request, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.config.GetSecureCookies() || getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	}
}

// redirectURL is the absolute OAuth redirect address of this server.
func (s *Server) redirectURL() string {
	return s.config.GetBaseURL() + s.config.GetOAuthRedirectPath()
}

// getOidcConfig discovers the Google provider once and caches it.
func (s *Server) getOidcConfig(ctx context.Context) (*OidcConfig, error) {
	s.oidcLock.Lock()
	defer s.oidcLock.Unlock()
	if s.oidc != nil {
		return s.oidc, nil
	}

	provider, err := oidc.NewProvider(ctx, s.config.GetGoogleIssuer())
	if err != nil {
		return nil, fmt.Errorf("[server getOidcConfig] failed to create OIDC provider: %w", err)
	}

	s.oidc = &OidcConfig{
		OidcProvider: provider,
		OAuth2Config: &oauth2.Config{
			ClientID:     s.config.GetGoogleClientID(),
			ClientSecret: s.config.GetGoogleClientSecret(),
			Endpoint:     provider.Endpoint(),
			RedirectURL:  s.redirectURL(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		OidcVerifier: provider.Verifier(&oidc.Config{
			ClientID: s.config.GetGoogleClientID(),
		}),
	}
	return s.oidc, nil
}

// redirectSuccess navigates to path: HX-Redirect for htmx requests, 303 otherwise.
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError navigates to path with a message the page shows in its error banner.
func redirectWithError(w http.ResponseWriter, r *http.Request, path, message string) {
	redirectSuccess(w, r, path+"?"+url.Values{"error": {message}}.Encode())
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
