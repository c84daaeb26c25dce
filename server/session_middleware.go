package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/myoutlet-admin/internal/errors"
	"github.com/jrsteele09/myoutlet-admin/sessions"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySession stores the *sessions.Session of the request
	ContextKeySession ContextKey = "session"
)

// SessionMiddleware loads the browser session named by the session cookie, starting a new one
// when the cookie is missing or unknown.
func (s *Server) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sess *sessions.Session
		if cookie, err := r.Cookie(s.config.GetSessionCookieName()); err == nil {
			sess, err = s.sessions.Get(cookie.Value)
			if err != nil && !errors.Is(err, errors.ErrSessionNotFound) {
				log.Err(err).Msg("Failed to load session")
			}
		}

		if sess == nil {
			created, err := s.sessions.Create()
			if err != nil {
				log.Err(err).Msg("Failed to create session")
				http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
				return
			}
			sess = created
			s.SetSessionCookie(w, r, sess.ID)
		}

		ctx := context.WithValue(r.Context(), ContextKeySession, sess)
		next(w, r.WithContext(ctx))
	}
}

// GuardMiddleware sends the browser where its session belongs. While the session is still
// initializing the loading page is served instead.
func (s *Server) GuardMiddleware(next http.HandlerFunc) http.HandlerFunc {
	loading := s.mustParsePage("loading.html")
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if sess == nil {
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}

		decision := sess.Guard.Check(r.Context(), r.URL.Path)
		switch {
		case decision.Loading:
			w.Header().Set("Retry-After", "1")
			s.render(w, http.StatusServiceUnavailable, loading, s.pageData(r, nil))
		case decision.Redirect != "":
			redirectSuccess(w, r, decision.Redirect)
		default:
			next(w, r)
		}
	}
}

func sessionFromContext(ctx context.Context) *sessions.Session {
	sess, _ := ctx.Value(ContextKeySession).(*sessions.Session)
	return sess
}
