// Package authstatus derives where a session belongs from what it holds.
package authstatus

import (
	"github.com/rs/zerolog/log"
)

// Tokens is the credential state the resolver reads.
type Tokens interface {
	GetAccessToken() (string, bool)
	GetRefreshToken() (string, bool)
	HasSessionData() bool
	Clear() error
}

// Targets are the destinations of each session state.
type Targets struct {
	Entry     string
	Register  string
	Dashboard string
}

// Status is a snapshot of the session.
type Status struct {
	HasToken         bool
	HasStoreData     bool
	ShouldRedirectTo string
}

// FullSession reports whether the owner is signed in and has a store.
func (s Status) FullSession() bool {
	return s.HasToken && s.HasStoreData
}

type Resolver struct {
	tokens  Tokens
	targets Targets
}

func NewResolver(tokens Tokens, targets Targets) *Resolver {
	return &Resolver{tokens: tokens, targets: targets}
}

// Resolve computes the status. Store data without any token is inconsistent: the session is
// cleared and sent to the entry page.
func (r *Resolver) Resolve() Status {
	_, hasAccess := r.tokens.GetAccessToken()
	_, hasRefresh := r.tokens.GetRefreshToken()
	hasToken := hasAccess || hasRefresh
	hasData := r.tokens.HasSessionData()

	status := Status{HasToken: hasToken, HasStoreData: hasData}
	switch {
	case hasToken && hasData:
		status.ShouldRedirectTo = r.targets.Dashboard
	case hasToken:
		status.ShouldRedirectTo = r.targets.Register
	case hasData:
		if err := r.tokens.Clear(); err != nil {
			log.Err(err).Msg("Failed to clear inconsistent session")
		}
		status.HasStoreData = false
		status.ShouldRedirectTo = r.targets.Entry
	default:
		status.ShouldRedirectTo = r.targets.Entry
	}
	return status
}
