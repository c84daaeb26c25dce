package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/myoutlet-admin/internal/errors"
	"github.com/jrsteele09/myoutlet-admin/restaurants"
	"github.com/rs/zerolog/log"
)

// TablesHandler lists the tables of the primary store
func (s *Server) TablesHandler() http.HandlerFunc {
	tmpl := s.mustParsePage("tables.html")
	return func(w http.ResponseWriter, r *http.Request) {
		store, _ := currentStore(r)
		tables, err := sessionFromContext(r.Context()).API.ListTables(r.Context(), store.ID)
		if err != nil {
			if errors.IsAuthFailure(err) {
				s.backendFailed(w, r, err, RouteDashboard)
				return
			}
			log.Err(err).Str("store", store.ID).Msg("Failed to list tables")
		}
		s.render(w, http.StatusOK, tmpl, s.pageData(r, map[string]interface{}{
			"Tables":       tables,
			"LoadFailed":   err != nil,
			"MaxSeatCount": restaurants.MaxSeatCount,
		}))
	}
}

func tableInput(r *http.Request) (restaurants.TableInput, error) {
	if err := r.ParseForm(); err != nil {
		return restaurants.TableInput{}, errors.Wrapf(errors.ErrInvalidRequest, "%v", err)
	}
	seats, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("seat_count")))
	if err != nil {
		return restaurants.TableInput{}, errors.Wrapf(errors.ErrValidation, "seat count must be a number")
	}
	in := restaurants.TableInput{
		TableName: strings.TrimSpace(r.PostFormValue("table_name")),
		SeatCount: seats,
	}
	return in, in.Validate()
}

func (s *Server) AddTableHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := tableInput(r)
		if err != nil {
			redirectWithError(w, r, RouteDashboardTables, validationMessage(err))
			return
		}
		store, _ := currentStore(r)
		if _, err := sessionFromContext(r.Context()).API.AddTable(r.Context(), store.ID, in); err != nil {
			s.backendFailed(w, r, err, RouteDashboardTables)
			return
		}
		redirectSuccess(w, r, RouteDashboardTables)
	}
}

func (s *Server) UpdateTableHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := tableInput(r)
		if err != nil {
			redirectWithError(w, r, RouteDashboardTables, validationMessage(err))
			return
		}
		if _, err := sessionFromContext(r.Context()).API.UpdateTable(r.Context(), chi.URLParam(r, "id"), in); err != nil {
			s.backendFailed(w, r, err, RouteDashboardTables)
			return
		}
		redirectSuccess(w, r, RouteDashboardTables)
	}
}

func (s *Server) DeleteTableHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessionFromContext(r.Context()).API.DeleteTable(r.Context(), chi.URLParam(r, "id")); err != nil {
			s.backendFailed(w, r, err, RouteDashboardTables)
			return
		}
		redirectSuccess(w, r, RouteDashboardTables)
	}
}

// validationMessage is the user facing part of a validation error.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "+errors.ErrValidation.Error()); i > 0 {
		return msg[:i]
	}
	return msg
}
