package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/myoutlet-admin/backend"
	"github.com/jrsteele09/myoutlet-admin/internal/config"
	"github.com/jrsteele09/myoutlet-admin/internal/errors"
	"github.com/jrsteele09/myoutlet-admin/server/authflowrepo"
	"github.com/jrsteele09/myoutlet-admin/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// signInResult is what a completed Google sign-in hands to the session.
type signInResult struct {
	AccessToken  string
	RefreshToken string
	UserJSON     string
}

// GoogleSignInHandler starts a Google sign-in, either through the backend broker or directly
// against Google with PKCE.
func (s *Server) GoogleSignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		state := randomToken(s.config.GetCodeGenerationLength())
		flow := &authflowrepo.AuthFlowState{
			SessionID: sess.ID,
			CreatedAt: time.Now(),
		}

		if s.config.GetSignInMode() != config.SignInModeOIDC {
			if err := s.authState.Upsert(state, flow); err != nil {
				log.Err(err).Msg("Failed to store sign-in state")
				redirectWithError(w, r, s.config.GetEntryRoute(), "Could not start sign-in")
				return
			}
			http.Redirect(w, r, s.auth.GoogleAuthURL(s.redirectURL(), state), http.StatusFound)
			return
		}

		oidcConfig, err := s.getOidcConfig(r.Context())
		if err != nil {
			log.Err(err).Msg("Google provider discovery failed")
			redirectWithError(w, r, s.config.GetEntryRoute(), "Google sign-in is unavailable")
			return
		}

		flow.CodeVerifier = oauth2.GenerateVerifier()
		flow.Nonce = randomToken(s.config.GetCodeGenerationLength())
		if err := s.authState.Upsert(state, flow); err != nil {
			log.Err(err).Msg("Failed to store sign-in state")
			redirectWithError(w, r, s.config.GetEntryRoute(), "Could not start sign-in")
			return
		}

		authURL := oidcConfig.OAuth2Config.AuthCodeURL(state,
			oauth2.S256ChallengeOption(flow.CodeVerifier),
			oidc.Nonce(flow.Nonce),
		)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// GoogleRedirectHandler completes a sign-in, stores the tokens in the session and sends the
// owner to the dashboard when they already have a store, otherwise to registration.
func (s *Server) GoogleRedirectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())

		if errorParam := r.FormValue("error"); errorParam != "" {
			log.Warn().Str("error", errorParam).Str("description", r.FormValue("error_description")).Msg("Google sign-in refused")
			redirectWithError(w, r, s.config.GetEntryRoute(), "Sign-in was cancelled")
			return
		}

		var (
			result signInResult
			err    error
		)
		if s.config.GetSignInMode() == config.SignInModeOIDC {
			result, err = s.completeOIDCSignIn(r, sess)
		} else {
			result, err = s.completeBrokerSignIn(r, sess)
		}
		if err != nil {
			log.Warn().Err(err).Msg("Sign-in failed")
			redirectWithError(w, r, s.config.GetEntryRoute(), "Sign-in failed, please try again")
			return
		}

		data, err := sess.SignIn(r.Context(), result.AccessToken, result.RefreshToken, result.UserJSON)
		switch {
		case err != nil && errors.IsAuthFailure(err):
			log.Warn().Err(err).Msg("Signed-in tokens were rejected")
			redirectWithError(w, r, s.config.GetEntryRoute(), "Sign-in failed, please try again")
		case err != nil:
			log.Warn().Err(err).Msg("Failed to load stores after sign-in")
			redirectSuccess(w, r, s.config.GetRegisterRoute())
		case data.IsPresent():
			redirectSuccess(w, r, s.config.GetDashboardRoute())
		default:
			redirectSuccess(w, r, s.config.GetRegisterRoute())
		}
	}
}

// consumeFlow returns and deletes the flow started with state by this session.
func (s *Server) consumeFlow(state string, sess *sessions.Session) (*authflowrepo.AuthFlowState, error) {
	flow, err := s.authState.Get(state)
	if err != nil {
		return nil, err
	}
	if err := s.authState.Delete(state); err != nil {
		return nil, err
	}
	if flow.SessionID != sess.ID {
		return nil, errors.Wrapf(errors.ErrInvalidState, "[server consumeFlow] state belongs to another session")
	}
	if flow.Expired(time.Now(), s.config.GetAuthFlowTimeout()) {
		return nil, errors.Wrapf(errors.ErrInvalidState, "[server consumeFlow] sign-in flow expired")
	}
	return flow, nil
}

// completeBrokerSignIn reads the tokens the backend broker put on the redirect: access_token,
// and a user object carrying the refresh token. The state must belong to a flow this session started.
func (s *Server) completeBrokerSignIn(r *http.Request, sess *sessions.Session) (signInResult, error) {
	q := r.URL.Query()
	state := q.Get("state")
	if state == "" {
		return signInResult{}, errors.Wrapf(errors.ErrInvalidState, "[server completeBrokerSignIn] missing state")
	}
	if _, err := s.consumeFlow(state, sess); err != nil {
		return signInResult{}, err
	}

	accessToken := q.Get("access_token")
	rawUser := q.Get("user")
	if accessToken == "" || rawUser == "" {
		return signInResult{}, errors.Wrapf(errors.ErrInvalidRequest, "[server completeBrokerSignIn] missing access_token or user")
	}

	user, err := backend.ParseUser([]byte(rawUser))
	if err != nil {
		return signInResult{}, err
	}
	refreshToken := user.RefreshToken
	user.RefreshToken = ""
	userJSON, err := json.Marshal(user)
	if err != nil {
		return signInResult{}, err
	}
	return signInResult{AccessToken: accessToken, RefreshToken: refreshToken, UserJSON: string(userJSON)}, nil
}

// completeOIDCSignIn exchanges the code with PKCE, verifies the ID token and its nonce, then
// trades the ID token for backend tokens.
func (s *Server) completeOIDCSignIn(r *http.Request, sess *sessions.Session) (signInResult, error) {
	code := r.FormValue("code")
	state := r.FormValue("state")
	if code == "" || state == "" {
		return signInResult{}, errors.Wrapf(errors.ErrInvalidRequest, "[server completeOIDCSignIn] missing code or state")
	}

	flow, err := s.consumeFlow(state, sess)
	if err != nil {
		return signInResult{}, err
	}

	oidcConfig, err := s.getOidcConfig(r.Context())
	if err != nil {
		return signInResult{}, err
	}

	oauth2Token, err := oidcConfig.OAuth2Config.Exchange(r.Context(), code, oauth2.VerifierOption(flow.CodeVerifier))
	if err != nil {
		return signInResult{}, errors.Wrapf(err, "[server completeOIDCSignIn] token exchange failed")
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return signInResult{}, errors.Wrapf(errors.ErrInvalidToken, "[server completeOIDCSignIn] no id_token in response")
	}
	idToken, err := oidcConfig.OidcVerifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		return signInResult{}, errors.Wrapf(err, "[server completeOIDCSignIn] id token verification failed")
	}

	var claims struct {
		Nonce string `json:"nonce"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return signInResult{}, errors.Wrapf(err, "[server completeOIDCSignIn] failed to extract claims")
	}
	if claims.Nonce != flow.Nonce {
		return signInResult{}, errors.ErrInvalidNonce
	}

	signIn, err := s.auth.ExchangeGoogleIDToken(r.Context(), rawIDToken)
	if err != nil {
		return signInResult{}, err
	}
	return signInResult{
		AccessToken:  signIn.AccessToken,
		RefreshToken: signIn.RefreshToken,
		UserJSON:     string(signIn.User),
	}, nil
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if err := sess.Logout(); err != nil {
			log.Err(err).Str("session", sess.ID).Msg("Failed to clear session on logout")
		}
		if err := s.sessions.Delete(sess.ID); err != nil {
			log.Err(err).Str("session", sess.ID).Msg("Failed to delete session")
		}
		s.ClearSessionCookie(w, r)
		redirectSuccess(w, r, s.config.GetEntryRoute())
	}
}
