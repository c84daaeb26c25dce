package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Pages
	RouteIndex    = "/"
	RouteRegister = "/register"

	// Auth Routes
	RouteAuthGoogle = "/auth/google"
	RouteAuthLogout = "/auth/logout"

	// Dashboard Routes
	RouteDashboard            = "/dashboard"
	RouteDashboardStoreQR     = "/dashboard/qr.png"
	RouteDashboardTables      = "/dashboard/tables"
	RouteDashboardTable       = "/dashboard/tables/{id}"
	RouteDashboardTableDelete = "/dashboard/tables/{id}/delete"
	RouteDashboardTableQR     = "/dashboard/tables/{id}/qr.png"
	RouteDashboardGallery     = "/dashboard/gallery"
	RouteDashboardGalleryDel  = "/dashboard/gallery/delete"
	RouteDashboardMenu        = "/dashboard/menu"
	RouteDashboardSettings    = "/dashboard/settings"
	RouteDashboardSubscribe   = "/dashboard/subscription"

	// API Routes
	RouteAPIStoreSearch = "/api/stores/search"
	RouteAPISpec        = "/api/openapi.yaml"
	RouteAPIDocs        = "/api/docs"

	// Operational Routes
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"

	// Static Asset Routes (patterns)
	RouteStatic = "/static/*"
)
