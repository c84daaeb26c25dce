package config

import "time"

type SecurityConfig interface {
	GetSessionCookieName() string
	GetMaxSessionAge() time.Duration
	GetSessionIdleTimeout() time.Duration
	GetStorageKey() string
	GetSecureCookies() bool
}

type Security struct {
	src source
}

var _ SecurityConfig = Security{}

func (s Security) GetSessionCookieName() string {
	return s.src.get("SESSION_COOKIE_NAME", "myoutlet_session")
}

// GetMaxSessionAge is the lifetime of the browser cookie and of the durable session namespace.
func (s Security) GetMaxSessionAge() time.Duration {
	return s.src.getDuration("MAX_SESSION_AGE", 30*24*time.Hour)
}

// GetSessionIdleTimeout is how long an unused session stays loaded in memory.
func (s Security) GetSessionIdleTimeout() time.Duration {
	return s.src.getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute)
}

// GetStorageKey returns the hex encoded 32 byte key used to seal stored tokens. Empty disables sealing.
func (s Security) GetStorageKey() string {
	return s.src.get("STORAGE_KEY", "")
}

// GetSecureCookies forces the Secure cookie flag even when the request arrives over plain http.
func (s Security) GetSecureCookies() bool {
	return s.src.getBool("SECURE_COOKIES", false)
}
