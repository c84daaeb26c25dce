package server

import (
	"net/http"

	"github.com/jrsteele09/myoutlet-admin/internal/errors"
	"github.com/jrsteele09/myoutlet-admin/restaurants"
	"github.com/rs/zerolog/log"
)

func (s *Server) registrationData(r *http.Request, form restaurants.Registration, fieldErrors restaurants.FieldErrors) map[string]interface{} {
	return s.pageData(r, map[string]interface{}{
		"Form":        form,
		"FieldErrors": fieldErrors,
		"Currencies":  restaurants.SupportedCurrencies,
		"Languages":   restaurants.SupportedLanguages,
		"SearchURL":   RouteAPIStoreSearch,
	})
}

// RegisterGetHandler renders the restaurant registration form
func (s *Server) RegisterGetHandler() http.HandlerFunc {
	tmpl := s.mustParsePage("register.html")
	return func(w http.ResponseWriter, r *http.Request) {
		form := restaurants.Registration{
			Currency: restaurants.SupportedCurrencies[0],
			Language: restaurants.SupportedLanguages[0],
		}
		s.render(w, http.StatusOK, tmpl, s.registrationData(r, form, nil))
	}
}

// RegisterPostHandler creates the owner's store. On success the cached store data is dropped so
// the guard loads it again before the dashboard is shown.
func (s *Server) RegisterPostHandler() http.HandlerFunc {
	tmpl := s.mustParsePage("register.html")
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "400 - Bad Request", http.StatusBadRequest)
			return
		}

		form := restaurants.Registration{
			RestaurantName: r.PostFormValue("restaurantName"),
			ParentStoreID:  r.PostFormValue("parentStoreId"),
			Subdomain:      r.PostFormValue("subdomain"),
			CustomDomain:   r.PostFormValue("customDomain"),
			Currency:       r.PostFormValue("currency"),
			Language:       r.PostFormValue("language"),
		}
		if err := form.Validate(); err != nil {
			var fieldErrors restaurants.FieldErrors
			if !errors.As(err, &fieldErrors) {
				fieldErrors = restaurants.FieldErrors{"form": err.Error()}
			}
			s.render(w, http.StatusUnprocessableEntity, tmpl, s.registrationData(r, form, fieldErrors))
			return
		}

		sess := sessionFromContext(r.Context())
		store, err := sess.API.CreateStore(r.Context(), form.Request())
		if err != nil {
			if errors.IsAuthFailure(err) {
				s.backendFailed(w, r, err, RouteRegister)
				return
			}
			log.Err(err).Msg("Store registration failed")
			fieldErrors := restaurants.FieldErrors{"form": "The restaurant could not be registered, please try again"}
			s.render(w, http.StatusBadGateway, tmpl, s.registrationData(r, form, fieldErrors))
			return
		}

		log.Info().Str("store", store.ID).Str("subdomain", store.Subdomain).Msg("Store registered")
		sess.ResetData()
		redirectSuccess(w, r, s.config.GetDashboardRoute())
	}
}
