package server

import (
	"net/http"

	"github.com/jrsteele09/myoutlet-admin/internal/errors"
	"github.com/jrsteele09/myoutlet-admin/restaurants"
	"github.com/rs/zerolog/log"
)

// IndexHandler renders the landing page
func (s *Server) IndexHandler() http.HandlerFunc {
	tmpl := s.mustParsePage("index.html")
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, tmpl, s.pageData(r, map[string]interface{}{
			"SignInURL": RouteAuthGoogle,
		}))
	}
}

// DashboardHandler renders the dashboard home with the store summary
func (s *Server) DashboardHandler() http.HandlerFunc {
	return s.StorePageHandler("dashboard.html")
}

// StorePageHandler renders a dashboard page that only displays the primary store.
func (s *Server) StorePageHandler(name string) http.HandlerFunc {
	tmpl := s.mustParsePage(name)
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, tmpl, s.pageData(r, map[string]interface{}{
			"Stores": sessionFromContext(r.Context()).Tokens.SessionData().Stores(),
		}))
	}
}

// currentStore is the primary store of the request's session.
func currentStore(r *http.Request) (restaurants.Store, bool) {
	sess := sessionFromContext(r.Context())
	if sess == nil {
		return restaurants.Store{}, false
	}
	return sess.Tokens.SessionData().Primary()
}

// backendFailed answers a failed backend call made on behalf of an action. An auth failure means
// the session was signed out; the owner is sent to the entry page without a message.
func (s *Server) backendFailed(w http.ResponseWriter, r *http.Request, err error, back string) {
	if errors.IsAuthFailure(err) {
		log.Info().Err(err).Str("path", r.URL.Path).Msg("Session signed out during backend call")
		redirectSuccess(w, r, s.config.GetEntryRoute())
		return
	}
	log.Err(err).Str("path", r.URL.Path).Msg("Backend call failed")
	redirectWithError(w, r, back, "Something went wrong, please try again")
}
