package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/myoutlet-admin/authstatus"
	"github.com/jrsteele09/myoutlet-admin/backend"
	"github.com/jrsteele09/myoutlet-admin/guard"
	"github.com/jrsteele09/myoutlet-admin/internal/config"
	"github.com/jrsteele09/myoutlet-admin/internal/metrics"
	"github.com/jrsteele09/myoutlet-admin/server/authflowrepo"
	"github.com/jrsteele09/myoutlet-admin/sessions"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	router     chi.Router
	routes     []string
	fileServer http.Handler
	config     config.Config
	sessions   sessions.Repo
	auth       *backend.AuthAPI
	authState  authflowrepo.Repo
	metrics    *metrics.Metrics

	oidc     *OidcConfig
	oidcLock sync.Mutex
}

func New(config config.Config, sessionRepo sessions.Repo, authAPI *backend.AuthAPI, authStateRepo authflowrepo.Repo, m *metrics.Metrics) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP)

	s := &Server{
		env:        config.GetEnv(),
		router:     r,
		fileServer: StaticHandler(),
		config:     config,
		sessions:   sessionRepo,
		auth:       authAPI,
		authState:  authStateRepo,
		metrics:    m,
	}

	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterRouteHandler registers handler for a "METHOD /path" pattern.
func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	method, path, ok := strings.Cut(pattern, " ")
	if !ok {
		s.router.Handle(pattern, handler)
		return
	}
	s.router.Method(method, path, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.RegisterRouteHandler(pattern, http.HandlerFunc(handler))
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, ok := strings.Cut(route, " ")
		if !ok {
			method, path = "*", route
		}
		log.Debug().Str("method", method).Str("path", path).Msg("Route")
	}
}

// PruneAuthFlows drops abandoned sign-in flows until stop is closed.
func (s *Server) PruneAuthFlows(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.authState.DeleteExpired(time.Now(), s.config.GetAuthFlowTimeout()); n > 0 {
				log.Debug().Int("removed", n).Msg("Pruned expired sign-in flows")
			}
		case <-stop:
			return
		}
	}
}

// GuardRoutes builds the route guard classification from the configuration.
func GuardRoutes(cfg config.Config) guard.Routes {
	return guard.Routes{
		Protected: cfg.GetProtectedPrefixes(),
		AuthOnly:  cfg.GetAuthOnlyPrefixes(),
		Public:    cfg.GetPublicRoutes(),
		Exempt:    []string{cfg.GetOAuthRedirectPath()},
		Targets: authstatus.Targets{
			Entry:     cfg.GetEntryRoute(),
			Register:  cfg.GetRegisterRoute(),
			Dashboard: cfg.GetDashboardRoute(),
		},
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
