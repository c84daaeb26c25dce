// Package guard decides, for every page request of a session, whether the owner may see the
// page or must be sent elsewhere. Before its first decision it initializes the session:
// promoting a refresh-token-only session to an access token and loading the store data.
package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/myoutlet-admin/authstatus"
	"github.com/jrsteele09/myoutlet-admin/internal/metrics"
	"github.com/jrsteele09/myoutlet-admin/refresh"
	"github.com/jrsteele09/myoutlet-admin/session"
	"github.com/jrsteele09/myoutlet-admin/tokenstore"
	"github.com/rs/zerolog/log"
)

type State int

const (
	Initializing State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "initializing"
}

// Tokens is the session storage the guard reads and updates.
type Tokens interface {
	authstatus.Tokens
	ReadDurable() (access, refresh string)
	SetSessionData(session.Data)
	SetFetchStatus(tokenstore.FetchStatus)
}

type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// StoreFetcher loads the owner's stores from the backend.
type StoreFetcher interface {
	StoreByOwner(ctx context.Context) (session.Data, error)
}

// Decision is the outcome of Check.
type Decision struct {
	// Redirect is the path to send the browser to; empty lets the request through.
	Redirect string
	// Loading is set when the request stopped waiting for initialization.
	Loading bool
}

type Guard struct {
	tokens    Tokens
	refresher Refresher
	fetcher   StoreFetcher
	resolver  *authstatus.Resolver
	routes    Routes
	delay     time.Duration
	initWait  time.Duration
	metrics   *metrics.Metrics

	mu      sync.Mutex
	state   State
	initKey string
	dirty   bool
	flight  refresh.Flight[string]
}

type Option func(*Guard)

// WithDelay makes every routing decision wait d first.
func WithDelay(d time.Duration) Option {
	return func(g *Guard) {
		g.delay = d
	}
}

// WithInitWait bounds how long a request waits for initialization before it is answered with
// Loading. Initialization keeps running. Zero waits as long as the request lives.
func WithInitWait(d time.Duration) Option {
	return func(g *Guard) {
		g.initWait = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

// New returns a guard in the Initializing state.
func New(tokens Tokens, refresher Refresher, fetcher StoreFetcher, routes Routes, opts ...Option) *Guard {
	g := &Guard{
		tokens:    tokens,
		refresher: refresher,
		fetcher:   fetcher,
		resolver:  authstatus.NewResolver(tokens, routes.Targets),
		routes:    routes,
		state:     Initializing,
		dirty:     true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Invalidate forces initialization to run again before the next decision.
func (g *Guard) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dirty = true
}

// Status resolves the session status without routing.
func (g *Guard) Status() authstatus.Status {
	return g.resolver.Resolve()
}

// Check initializes the session when needed and returns the routing decision for path.
func (g *Guard) Check(ctx context.Context, path string) Decision {
	initRedirect, err := g.initialize(ctx)
	if err != nil {
		return Decision{Loading: true}
	}

	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return Decision{Loading: true}
		}
	}

	target := Decide(path, g.resolver.Resolve(), g.routes)
	if target == "" && initRedirect != "" && initRedirect != path && g.routes.Classify(path) != ClassExempt {
		target = initRedirect
	}
	if target != "" {
		g.metrics.GuardRedirect(target)
		log.Debug().Str("path", path).Str("redirect", target).Msg("Route guard redirect")
	}
	return Decision{Redirect: target}
}

// fingerprint identifies the state initialization depends on.
func (g *Guard) fingerprint() string {
	access, _ := g.tokens.GetAccessToken()
	if g.tokens.HasSessionData() {
		return access + "|data"
	}
	return access + "|none"
}

func (g *Guard) needsInit() bool {
	key := g.fingerprint()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dirty || g.initKey != key
}

var errInitPending = errors.New("guard: initialization still running")

// initialize runs (or joins) the initialization step. A caller whose ctx ends or whose init wait
// runs out stops waiting; the initialization itself carries on.
func (g *Guard) initialize(ctx context.Context) (string, error) {
	if !g.needsInit() {
		return "", nil
	}

	type outcome struct {
		redirect string
		err      error
	}
	ch := make(chan outcome, 1)
	go func() {
		redirect, _, err := g.flight.Do(context.WithoutCancel(ctx), g.runInit)
		ch <- outcome{redirect: redirect, err: err}
	}()

	var waitC <-chan time.Time
	if g.initWait > 0 {
		timer := time.NewTimer(g.initWait)
		defer timer.Stop()
		waitC = timer.C
	}

	select {
	case o := <-ch:
		return o.redirect, o.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-waitC:
		return "", errInitPending
	}
}

func (g *Guard) runInit(ctx context.Context) (string, error) {
	g.mu.Lock()
	g.dirty = false
	g.mu.Unlock()

	redirect := g.promoteRefreshToken(ctx)
	if redirect == "" {
		g.loadSessionData(ctx)
	}

	key := g.fingerprint()
	g.mu.Lock()
	g.initKey = key
	g.state = Ready
	g.mu.Unlock()
	return redirect, nil
}

// promoteRefreshToken refreshes a session that holds only a refresh token. On failure the
// session is cleared and the entry page is returned.
func (g *Guard) promoteRefreshToken(ctx context.Context) string {
	access, refreshToken := g.tokens.ReadDurable()
	if access != "" || refreshToken == "" {
		return ""
	}
	if _, ok := g.tokens.GetAccessToken(); ok {
		return ""
	}

	if _, err := g.refresher.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Session refresh on load failed, signing out")
		if clearErr := g.tokens.Clear(); clearErr != nil {
			log.Err(clearErr).Msg("Failed to clear session")
		}
		return g.routes.Entry
	}
	return ""
}

// loadSessionData fetches the owner's stores when signed in without them. Failures are logged.
func (g *Guard) loadSessionData(ctx context.Context) {
	if _, ok := g.tokens.GetAccessToken(); !ok || g.tokens.HasSessionData() {
		return
	}

	g.tokens.SetFetchStatus(tokenstore.FetchLoading)
	data, err := g.fetcher.StoreByOwner(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load owner stores")
		g.tokens.SetFetchStatus(tokenstore.FetchFailed)
		return
	}
	g.tokens.SetSessionData(data)
	g.tokens.SetFetchStatus(tokenstore.FetchIdle)
}
