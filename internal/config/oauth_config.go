package config

import "time"

const (
	// SignInModeBroker hands the whole Google sign-in to the backend, which redirects back with tokens.
	SignInModeBroker = "broker"
	// SignInModeOIDC runs the Google code flow here and exchanges the ID token with the backend.
	SignInModeOIDC = "oidc"
)

type OAuthConfig interface {
	GetSignInMode() string
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleIssuer() string
	GetOAuthRedirectPath() string
	GetAuthFlowTimeout() time.Duration
	GetCodeGenerationLength() int
}

type OAuth struct {
	src source
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetSignInMode() string {
	if o.src.get("SIGN_IN_MODE", SignInModeBroker) == SignInModeOIDC {
		return SignInModeOIDC
	}
	return SignInModeBroker
}

func (o OAuth) GetGoogleClientID() string {
	return o.src.get("GOOGLE_CLIENT_ID", "")
}

func (o OAuth) GetGoogleClientSecret() string {
	return o.src.get("GOOGLE_CLIENT_SECRET", "")
}

func (o OAuth) GetGoogleIssuer() string {
	return o.src.get("GOOGLE_ISSUER", "https://accounts.google.com")
}

// GetOAuthRedirectPath is where the sign-in provider sends the browser back to.
func (o OAuth) GetOAuthRedirectPath() string {
	return o.src.get("OAUTH_REDIRECT_PATH", "/auth/google/redirect")
}

func (o OAuth) GetAuthFlowTimeout() time.Duration {
	return o.src.getDuration("AUTH_FLOW_TIMEOUT", 10*time.Minute)
}

func (OAuth) GetCodeGenerationLength() int {
	return 32
}
