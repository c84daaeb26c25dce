package config

import (
	"strings"
	"time"
)

type BackendConfig interface {
	GetBackendURL() string
	GetRefreshTimeout() time.Duration
	GetRequestTimeout() time.Duration
	GetPublicMenuHost() string
}

type Backend struct {
	src source
}

var _ BackendConfig = Backend{}

func (b Backend) GetBackendURL() string {
	return strings.TrimSuffix(b.src.get("BACKEND_URL", "https://api.myoutlet.app"), "/")
}

// GetRefreshTimeout bounds a single token refresh call.
func (b Backend) GetRefreshTimeout() time.Duration {
	return b.src.getDuration("REFRESH_TIMEOUT", 15*time.Second)
}

func (b Backend) GetRequestTimeout() time.Duration {
	return b.src.getDuration("REQUEST_TIMEOUT", 30*time.Second)
}

// GetPublicMenuHost is the host of the customer facing menu that table QR codes point at.
func (b Backend) GetPublicMenuHost() string {
	return b.src.get("PUBLIC_MENU_HOST", "restaurant.myoutlet.app")
}
