package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	page := func(h http.HandlerFunc) http.Handler {
		return ChainMiddleware(h, s.HTMLMiddleWare(s.SessionMiddleware, s.GuardMiddleware)...)
	}

	s.RegisterRouteHandler("GET "+RouteIndex, page(s.IndexHandler()))

	// SIGN IN
	s.RegisterRouteHandler("GET "+RouteAuthGoogle, ChainMiddleware(s.GoogleSignInHandler(), s.HTMLMiddleWare(s.SessionMiddleware)...))
	s.RegisterRouteHandler("GET "+s.config.GetOAuthRedirectPath(), ChainMiddleware(s.GoogleRedirectHandler(), s.HTMLMiddleWare(s.SessionMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare(s.SessionMiddleware)...))

	// REGISTRATION
	s.RegisterRouteHandler("GET "+RouteRegister, page(s.RegisterGetHandler()))
	s.RegisterRouteHandler("POST "+RouteRegister, page(s.RegisterPostHandler()))

	// DASHBOARD
	s.RegisterRouteHandler("GET "+RouteDashboard, page(s.DashboardHandler()))
	s.RegisterRouteHandler("GET "+RouteDashboardStoreQR, page(s.StoreQRHandler()))
	s.RegisterRouteHandler("GET "+RouteDashboardTables, page(s.TablesHandler()))
	s.RegisterRouteHandler("POST "+RouteDashboardTables, page(s.AddTableHandler()))
	s.RegisterRouteHandler("POST "+RouteDashboardTable, page(s.UpdateTableHandler()))
	s.RegisterRouteHandler("POST "+RouteDashboardTableDelete, page(s.DeleteTableHandler()))
	s.RegisterRouteHandler("GET "+RouteDashboardTableQR, page(s.TableQRHandler()))
	s.RegisterRouteHandler("GET "+RouteDashboardGallery, page(s.GalleryHandler()))
	s.RegisterRouteHandler("POST "+RouteDashboardGallery, page(s.UploadGalleryHandler()))
	s.RegisterRouteHandler("POST "+RouteDashboardGalleryDel, page(s.DeleteGalleryImageHandler()))
	s.RegisterRouteHandler("GET "+RouteDashboardMenu, page(s.StorePageHandler("menu.html")))
	s.RegisterRouteHandler("GET "+RouteDashboardSettings, page(s.StorePageHandler("settings.html")))
	s.RegisterRouteHandler("GET "+RouteDashboardSubscribe, page(s.StorePageHandler("subscription.html")))

	// API routes
	s.RegisterRouteHandler("GET "+RouteAPIStoreSearch, ChainMiddleware(s.StoreSearchHandler(), s.APIMiddleware(s.SessionMiddleware)...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPIStoreSearch, ChainMiddleware(s.StoreSearchHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPISpec, ChainMiddleware(s.OpenAPISpecHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIDocs, s.APIDocsHandler())

	// Operational
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())

	s.RegisterRouteHandler("GET "+RouteStatic, ChainMiddleware(s.fileServer.ServeHTTP, s.CacheMiddleware, s.CompressionMiddleware))
}
