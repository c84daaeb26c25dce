package config

import "time"

type RoutesConfig interface {
	GetEntryRoute() string
	GetRegisterRoute() string
	GetDashboardRoute() string
	GetProtectedPrefixes() []string
	GetAuthOnlyPrefixes() []string
	GetPublicRoutes() []string
	GetRoutingDelay() time.Duration
	GetGuardInitWait() time.Duration
}

type Routes struct {
	src source
}

var _ RoutesConfig = Routes{}

func (r Routes) GetEntryRoute() string {
	return r.src.get("ROUTE_ENTRY", "/")
}

func (r Routes) GetRegisterRoute() string {
	return r.src.get("ROUTE_REGISTER", "/register")
}

func (r Routes) GetDashboardRoute() string {
	return r.src.get("ROUTE_DASHBOARD", "/dashboard")
}

func (r Routes) GetProtectedPrefixes() []string {
	return r.src.getList("ROUTES_PROTECTED", []string{"/dashboard"})
}

func (r Routes) GetAuthOnlyPrefixes() []string {
	return r.src.getList("ROUTES_AUTH_ONLY", []string{"/register"})
}

func (r Routes) GetPublicRoutes() []string {
	return r.src.getList("ROUTES_PUBLIC", []string{"/"})
}

// GetRoutingDelay is how long the route guard waits before deciding, letting state settle.
func (r Routes) GetRoutingDelay() time.Duration {
	return r.src.getDuration("ROUTING_DELAY", 0)
}

// GetGuardInitWait is how long a page request waits for its session to initialize before the
// loading page is served.
func (r Routes) GetGuardInitWait() time.Duration {
	return r.src.getDuration("GUARD_INIT_WAIT", 3*time.Second)
}
