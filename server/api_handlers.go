package server

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-openapi/runtime/middleware"
	"github.com/jrsteele09/myoutlet-admin/internal/errors"
	"github.com/jrsteele09/myoutlet-admin/restaurants"
	"github.com/rs/zerolog/log"
)

//go:embed openapi.yaml
var openapiSpec []byte

const minSearchLength = 2

type storeSearchResult struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to write JSON response")
	}
}

// StoreSearchHandler backs the parent store autocomplete of the registration form.
func (s *Server) StoreSearchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if sess == nil || !sess.Guard.Status().HasToken {
			writeJSON(w, http.StatusUnauthorized, apiError{Error: "sign in required"})
			return
		}

		query := strings.TrimSpace(r.URL.Query().Get("q"))
		results := []storeSearchResult{}
		if len(query) < minSearchLength {
			writeJSON(w, http.StatusOK, results)
			return
		}

		stores, err := sess.API.SearchStores(r.Context(), query)
		if err != nil {
			if errors.IsAuthFailure(err) {
				writeJSON(w, http.StatusUnauthorized, apiError{Error: "session expired"})
				return
			}
			log.Err(err).Str("query", query).Msg("Store search failed")
			writeJSON(w, http.StatusBadGateway, apiError{Error: "search failed"})
			return
		}
		for _, st := range stores {
			results = append(results, searchResult(st))
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func searchResult(st restaurants.Store) storeSearchResult {
	return storeSearchResult{ID: st.ID, Name: st.Name, Subdomain: st.Subdomain}
}

func (s *Server) OpenAPISpecHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(openapiSpec)
	}
}

func (s *Server) APIDocsHandler() http.Handler {
	return middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: RouteAPISpec,
		Path:    strings.TrimPrefix(RouteAPIDocs, "/"),
		Title:   s.config.GetAppName() + " API",
	}, nil)
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
