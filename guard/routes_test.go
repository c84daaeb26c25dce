package guard_test

import (
	"testing"

	"github.com/jrsteele09/myoutlet-admin/authstatus"
	"github.com/jrsteele09/myoutlet-admin/guard"
	"github.com/stretchr/testify/require"
)

func testRoutes() guard.Routes {
	return guard.Routes{
		Protected: []string{"/dashboard"},
		AuthOnly:  []string{"/register"},
		Public:    []string{"/"},
		Exempt:    []string{"/auth/google/redirect"},
		Targets: authstatus.Targets{
			Entry:     "/",
			Register:  "/register",
			Dashboard: "/dashboard",
		},
	}
}

func TestClassify(t *testing.T) {
	routes := testRoutes()
	tests := []struct {
		path string
		want guard.Class
	}{
		{"/dashboard", guard.ClassProtected},
		{"/dashboard/tables", guard.ClassProtected},
		{"/dashboards", guard.ClassOther},
		{"/register", guard.ClassAuthOnly},
		{"/", guard.ClassPublic},
		{"/auth/google/redirect", guard.ClassExempt},
		{"/auth/google/redirect/", guard.ClassExempt},
		{"/auth/google/redirectx", guard.ClassOther},
		{"/pricing", guard.ClassOther},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.want, routes.Classify(tt.path))
		})
	}
}

func TestDecide(t *testing.T) {
	routes := testRoutes()
	anonymous := authstatus.Status{ShouldRedirectTo: "/"}
	signedIn := authstatus.Status{HasToken: true, ShouldRedirectTo: "/register"}
	full := authstatus.Status{HasToken: true, HasStoreData: true, ShouldRedirectTo: "/dashboard"}

	tests := []struct {
		name   string
		path   string
		status authstatus.Status
		want   string
	}{
		{"protected without token", "/dashboard", anonymous, "/"},
		{"protected subpage without token", "/dashboard/tables", anonymous, "/"},
		{"protected without store", "/dashboard", signedIn, "/register"},
		{"protected with full session", "/dashboard", full, ""},
		{"protected subpage with full session", "/dashboard/gallery", full, ""},
		{"auth-only without token", "/register", anonymous, "/"},
		{"auth-only with store", "/register", full, "/dashboard"},
		{"auth-only signed in", "/register", signedIn, ""},
		{"public with full session", "/", full, "/dashboard"},
		{"public signed in without store", "/", signedIn, "/register"},
		{"public anonymous", "/", anonymous, ""},
		{"exempt anonymous", "/auth/google/redirect", anonymous, ""},
		{"exempt full", "/auth/google/redirect", full, ""},
		{"other path follows status", "/pricing", full, "/dashboard"},
		{"other path anonymous", "/pricing", anonymous, "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, guard.Decide(tt.path, tt.status, routes))
		})
	}
}
