// Package tokenstore keeps a session's credentials in durable storage with an in-memory mirror.
package tokenstore

import (
	"errors"
	"sync"

	"github.com/jrsteele09/myoutlet-admin/kvstore"
	"github.com/jrsteele09/myoutlet-admin/session"
	"github.com/rs/zerolog/log"
)

// Durable storage keys
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// FetchStatus tracks the store data request of the current session.
type FetchStatus string

const (
	FetchIdle    FetchStatus = ""
	FetchLoading FetchStatus = "loading"
	FetchFailed  FetchStatus = "error"
)

// Store is safe for concurrent use. Token writes hold the write lock across the durable write
// and the mirror update, so readers never observe one token without the other.
type Store struct {
	mu        sync.RWMutex
	durable   kvstore.Store
	namespace string

	access  string
	refresh string
	user    string
	data    session.Data
	status  FetchStatus
	// cleared stops durable fallback until the next SetTokens, so a failed durable delete
	// cannot bring cleared credentials back.
	cleared bool
}

// New returns a Store whose durable values live under namespace.
func New(durable kvstore.Store, namespace string) *Store {
	return &Store{durable: durable, namespace: namespace, data: session.NoSession}
}

// GetAccessToken prefers the in-memory token and falls back to durable storage.
func (s *Store) GetAccessToken() (string, bool) {
	return s.get(KeyAccessToken, func() string { return s.access })
}

// GetRefreshToken prefers the in-memory token and falls back to durable storage.
func (s *Store) GetRefreshToken() (string, bool) {
	return s.get(KeyRefreshToken, func() string { return s.refresh })
}

func (s *Store) get(key string, mirror func() string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v := mirror(); v != "" {
		return v, true
	}
	if s.cleared {
		return "", false
	}
	v := s.readDurable(key)
	return v, v != ""
}

// readDurable must be called with the lock held.
func (s *Store) readDurable(key string) string {
	v, err := s.durable.Get(s.namespace, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.Err(err).Str("key", key).Msg("Failed to read durable session value")
		}
		return ""
	}
	return v
}

// ReadDurable reads both tokens from durable storage, bypassing the in-memory mirror.
func (s *Store) ReadDurable() (access, refresh string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cleared {
		return "", ""
	}
	return s.readDurable(KeyAccessToken), s.readDurable(KeyRefreshToken)
}

// SetTokens persists both tokens in one atomic write, then updates the mirror.
func (s *Store) SetTokens(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.durable.PutMany(s.namespace, map[string]string{
		KeyAccessToken:  access,
		KeyRefreshToken: refresh,
	}); err != nil {
		return err
	}
	s.access = access
	s.refresh = refresh
	s.cleared = false
	return nil
}

// SetUser caches the signed-in user's JSON profile.
func (s *Store) SetUser(userJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.durable.PutMany(s.namespace, map[string]string{KeyUser: userJSON}); err != nil {
		return err
	}
	s.user = userJSON
	return nil
}

func (s *Store) User() (string, bool) {
	return s.get(KeyUser, func() string { return s.user })
}

// Clear removes every credential from durable storage and resets the in-memory state.
// When the durable delete fails the store still reports no credentials until SetTokens.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = ""
	s.refresh = ""
	s.user = ""
	s.data = session.NoSession
	s.status = FetchIdle
	s.cleared = true

	return s.durable.Delete(s.namespace, KeyAccessToken, KeyRefreshToken, KeyUser)
}

func (s *Store) SetSessionData(d session.Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = d
}

func (s *Store) SessionData() session.Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// HasSessionData reports whether the owner has at least one store loaded.
func (s *Store) HasSessionData() bool {
	return s.SessionData().IsPresent()
}

func (s *Store) SetFetchStatus(status FetchStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Store) FetchStatus() FetchStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
