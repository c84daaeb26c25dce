// Package sessions keeps the live browser sessions of the admin server. Each session owns its
// token storage, refresh coordinator, backend client and route guard.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/myoutlet-admin/backend"
	"github.com/jrsteele09/myoutlet-admin/guard"
	"github.com/jrsteele09/myoutlet-admin/httpclient"
	"github.com/jrsteele09/myoutlet-admin/kvstore"
	"github.com/jrsteele09/myoutlet-admin/refresh"
	"github.com/jrsteele09/myoutlet-admin/session"
	"github.com/jrsteele09/myoutlet-admin/tokenstore"
	"github.com/rs/zerolog/log"
)

// Session is one browser session, loaded in memory.
type Session struct {
	ID          string
	CreatedAt   time.Time
	Tokens      *tokenstore.Store
	Coordinator *refresh.Coordinator
	Client      *httpclient.Client
	API         *backend.API
	Guard       *guard.Guard

	durable  kvstore.Store
	mu       sync.Mutex
	lastSeen time.Time
}

func (m *Manager) newSession(id string, createdAt time.Time) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: createdAt,
		Tokens:    tokenstore.New(m.durable, id),
		durable:   m.durable,
		lastSeen:  time.Now(),
	}
	s.Coordinator = refresh.NewCoordinator(s.Tokens, m.auth,
		refresh.WithTimeout(m.opts.RefreshTimeout),
		refresh.WithMetrics(m.opts.Metrics),
	)

	clientOpts := []httpclient.Option{
		httpclient.WithTimeout(m.opts.RequestTimeout),
		httpclient.WithMetrics(m.opts.Metrics),
		httpclient.WithOnLogout(s.onLogout),
	}
	if m.opts.Transport != nil {
		clientOpts = append(clientOpts, httpclient.WithBaseTransport(m.opts.Transport))
	}
	s.Client = httpclient.New(m.opts.BackendURL, s.Tokens, s.Coordinator, clientOpts...)
	s.API = backend.NewAPI(s.Client)
	s.Guard = guard.New(s.Tokens, s.Coordinator, s.API, m.opts.Routes,
		guard.WithDelay(m.opts.RoutingDelay),
		guard.WithInitWait(m.opts.InitWait),
		guard.WithMetrics(m.opts.Metrics),
	)
	return s
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SignIn stores the tokens and user of a completed sign-in and loads the owner's stores. The
// session's creation time is stored with them so the maximum age holds across restarts.
func (s *Session) SignIn(ctx context.Context, access, refreshToken, userJSON string) (session.Data, error) {
	if err := s.durable.PutMany(s.ID, map[string]string{KeyCreatedAt: s.CreatedAt.UTC().Format(time.RFC3339)}); err != nil {
		return session.NoSession, err
	}
	if err := s.Tokens.SetTokens(access, refreshToken); err != nil {
		return session.NoSession, err
	}
	if userJSON != "" {
		if err := s.Tokens.SetUser(userJSON); err != nil {
			return session.NoSession, err
		}
	}

	s.Tokens.SetFetchStatus(tokenstore.FetchLoading)
	data, err := s.API.StoreByOwner(ctx)
	if err != nil {
		s.Tokens.SetFetchStatus(tokenstore.FetchFailed)
		return session.NoSession, err
	}
	s.Tokens.SetSessionData(data)
	s.Tokens.SetFetchStatus(tokenstore.FetchIdle)
	return data, nil
}

// ResetData drops the cached stores so the guard loads them again.
func (s *Session) ResetData() {
	s.Tokens.SetSessionData(session.NoSession)
	s.Guard.Invalidate()
}

// Logout clears every credential of the session.
func (s *Session) Logout() error {
	err := s.Tokens.Clear()
	s.ResetData()
	return err
}

func (s *Session) onLogout(ctx context.Context) {
	log.Info().Str("session", s.ID).Msg("Session signed out after failed token refresh")
	s.Guard.Invalidate()
}
