package authflowrepo

import "time"

// AuthFlowState is what a sign-in started with, keyed by its OAuth state parameter.
type AuthFlowState struct {
	// SessionID binds the flow to the browser session that started it.
	SessionID    string
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

// Expired reports whether the flow is older than ttl at now.
func (a AuthFlowState) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(a.CreatedAt) > ttl
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	Get(state string) (*AuthFlowState, error)
	Delete(state string) error
	DeleteExpired(now time.Time, ttl time.Duration) int
}
