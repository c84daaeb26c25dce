package sessions

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/myoutlet-admin/backend"
	"github.com/jrsteele09/myoutlet-admin/guard"
	"github.com/jrsteele09/myoutlet-admin/internal/errors"
	"github.com/jrsteele09/myoutlet-admin/internal/metrics"
	"github.com/jrsteele09/myoutlet-admin/kvstore"
	"github.com/jrsteele09/myoutlet-admin/refresh"
	"github.com/jrsteele09/myoutlet-admin/tokenstore"
	"github.com/rs/zerolog/log"
)

// KeyCreatedAt holds the RFC 3339 creation time of a signed-in session's namespace.
const KeyCreatedAt = "created_at"

type Options struct {
	BackendURL     string
	RefreshTimeout time.Duration
	RequestTimeout time.Duration
	// IdleTimeout unloads sessions not seen for this long. Their durable data stays.
	IdleTimeout time.Duration
	// MaxAge ends a session this long after it was created and deletes its durable data.
	// Zero keeps sessions until logout.
	MaxAge       time.Duration
	RoutingDelay time.Duration
	// InitWait bounds how long a request waits for guard initialization. Zero waits for the request.
	InitWait time.Duration
	Routes   guard.Routes
	// Transport is the base transport of every backend client. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Metrics   *metrics.Metrics
}

// Manager is the in-memory registry of live sessions over a durable kvstore.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	durable  kvstore.Store
	auth     *backend.AuthAPI
	opts     Options

	stopCh   chan struct{}
	stopOnce sync.Once
}

var _ Repo = (*Manager)(nil)

// NewManager starts the eviction loop when opts.IdleTimeout or opts.MaxAge is set. Call Close to
// stop it.
func NewManager(durable kvstore.Store, auth *backend.AuthAPI, opts Options) *Manager {
	if opts.RefreshTimeout == 0 {
		opts.RefreshTimeout = refresh.DefaultTimeout
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	m := &Manager{
		sessions: make(map[string]*Session),
		durable:  durable,
		auth:     auth,
		opts:     opts,
		stopCh:   make(chan struct{}),
	}
	if interval := m.sweepInterval(); interval > 0 {
		go m.evictLoop(interval)
	}
	return m
}

func (m *Manager) sweepInterval() time.Duration {
	var interval time.Duration
	if m.opts.IdleTimeout > 0 {
		interval = m.opts.IdleTimeout / 2
	}
	if m.opts.MaxAge > 0 && (interval == 0 || interval > time.Minute) {
		interval = time.Minute
	}
	return interval
}

func (m *Manager) Get(id string) (*Session, error) {
	if id == "" {
		return nil, errors.ErrSessionNotFound
	}

	now := time.Now()
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		if m.expired(s.CreatedAt, now) {
			m.expire(id)
			return nil, errors.ErrSessionNotFound
		}
		s.touch()
		return s, nil
	}

	if !m.hasDurableData(id) {
		return nil, errors.ErrSessionNotFound
	}
	createdAt, ok := m.durableCreatedAt(id)
	if !ok {
		createdAt = now
		if err := m.durable.PutMany(id, map[string]string{KeyCreatedAt: now.UTC().Format(time.RFC3339)}); err != nil {
			log.Err(err).Str("session", id).Msg("Failed to store session creation time")
		}
	}
	if m.expired(createdAt, now) {
		m.expire(id)
		return nil, errors.ErrSessionNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.touch()
		return s, nil
	}
	s = m.newSession(id, createdAt)
	m.sessions[id] = s
	m.opts.Metrics.SessionLoaded()
	log.Debug().Str("session", id).Msg("Session loaded from storage")
	return s, nil
}

func (m *Manager) Create() (*Session, error) {
	id := uuid.NewString()
	s := m.newSession(id, time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s
	m.opts.Metrics.SessionLoaded()
	return s, nil
}

// Delete unloads the session and removes its durable data.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		m.opts.Metrics.SessionUnloaded()
	}

	if err := m.durable.DeleteNamespace(id); err != nil {
		return errors.Wrapf(err, "[Manager Delete] %s", id)
	}
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops the eviction loop.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Manager) hasDurableData(id string) bool {
	for _, key := range []string{tokenstore.KeyAccessToken, tokenstore.KeyRefreshToken, tokenstore.KeyUser} {
		v, err := m.durable.Get(id, key)
		if err == nil && v != "" {
			return true
		}
		if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
			log.Err(err).Str("session", id).Msg("Failed to read session storage")
		}
	}
	return false
}

func (m *Manager) expired(createdAt, now time.Time) bool {
	return m.opts.MaxAge > 0 && now.Sub(createdAt) > m.opts.MaxAge
}

// expire unloads the session and deletes its durable data.
func (m *Manager) expire(id string) {
	if err := m.Delete(id); err != nil {
		log.Err(err).Str("session", id).Msg("Failed to delete expired session")
		return
	}
	log.Debug().Str("session", id).Msg("Session expired")
}

func (m *Manager) durableCreatedAt(id string) (time.Time, bool) {
	v, err := m.durable.Get(id, KeyCreatedAt)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.Err(err).Str("session", id).Msg("Failed to read session creation time")
		}
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		log.Warn().Err(err).Str("session", id).Msg("Invalid session creation time")
		return time.Time{}, false
	}
	return t, true
}

func (m *Manager) evictLoop(interval time.Duration) {
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			m.EvictIdle(now)
			m.SweepExpired(now)
		case <-m.stopCh:
			return
		}
	}
}

// EvictIdle unloads sessions idle for longer than the idle timeout at now.
func (m *Manager) EvictIdle(now time.Time) int {
	if m.opts.IdleTimeout <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.opts.IdleTimeout && !s.Coordinator.InFlight() {
			delete(m.sessions, id)
			m.opts.Metrics.SessionUnloaded()
			evicted++
		}
	}
	if evicted > 0 {
		log.Debug().Int("evicted", evicted).Msg("Unloaded idle sessions")
	}
	return evicted
}

// SweepExpired ends every session older than the maximum age at now, loaded or only stored.
// Stored namespaces without a creation time get one when they are next loaded.
func (m *Manager) SweepExpired(now time.Time) int {
	if m.opts.MaxAge <= 0 {
		return 0
	}

	expired := map[string]struct{}{}
	m.mu.RLock()
	for id, s := range m.sessions {
		if m.expired(s.CreatedAt, now) {
			expired[id] = struct{}{}
		}
	}
	m.mu.RUnlock()

	namespaces, err := m.durable.Namespaces()
	if err != nil {
		log.Err(err).Msg("Failed to list stored sessions")
	}
	for _, id := range namespaces {
		if createdAt, ok := m.durableCreatedAt(id); ok && m.expired(createdAt, now) {
			expired[id] = struct{}{}
		}
	}

	removed := 0
	for id := range expired {
		if err := m.Delete(id); err != nil {
			log.Err(err).Str("session", id).Msg("Failed to delete expired session")
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info().Int("expired", removed).Msg("Removed expired sessions")
	}
	return removed
}
