// Package refresh coordinates access token refreshes so that a session never has more than
// one refresh outstanding at the backend.
package refresh

import (
	"context"
	"time"

	"github.com/jrsteele09/myoutlet-admin/internal/errors"
	"github.com/jrsteele09/myoutlet-admin/internal/metrics"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds one backend refresh call.
const DefaultTimeout = 15 * time.Second

// TokenStore is the credential storage the coordinator reads and rotates.
type TokenStore interface {
	GetRefreshToken() (string, bool)
	SetTokens(access, refresh string) error
}

// Refresher exchanges a refresh token at the backend. refresh is empty when the backend
// did not rotate the refresh token.
type Refresher interface {
	RefreshTokens(ctx context.Context, refreshToken string) (access, refresh string, err error)
}

type Coordinator struct {
	tokens    TokenStore
	refresher Refresher
	timeout   time.Duration
	metrics   *metrics.Metrics
	flight    Flight[string]
}

type Option func(*Coordinator)

// WithTimeout sets the backend call timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func NewCoordinator(tokens TokenStore, refresher Refresher, opts ...Option) *Coordinator {
	c := &Coordinator{
		tokens:    tokens,
		refresher: refresher,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh returns a fresh access token, joining a refresh already in flight.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	token, _, err := c.RefreshInitiated(ctx)
	return token, err
}

// RefreshInitiated is Refresh that also reports whether this call issued the backend request.
func (c *Coordinator) RefreshInitiated(ctx context.Context) (token string, initiated bool, err error) {
	token, joined, err := c.flight.Do(ctx, c.refresh)
	if joined {
		c.metrics.RefreshWaiter()
	}
	return token, !joined, err
}

// Join queues resolve/reject on the refresh in flight. It returns false when none is running.
func (c *Coordinator) Join(resolve func(string), reject func(error)) bool {
	if c.flight.Join(resolve, reject) {
		c.metrics.RefreshWaiter()
		return true
	}
	return false
}

func (c *Coordinator) InFlight() bool {
	return c.flight.InFlight()
}

// Waiters returns the number of callers queued on the refresh in flight.
func (c *Coordinator) Waiters() int {
	return c.flight.Waiters()
}

func (c *Coordinator) refresh(ctx context.Context) (string, error) {
	refreshToken, ok := c.tokens.GetRefreshToken()
	if !ok {
		c.metrics.Refresh(metrics.RefreshNoToken)
		return "", errors.ErrCredentialAbsent
	}

	// The call outlives the initiating request; only the timeout bounds it.
	ctx = context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	access, rotated, err := c.refresher.RefreshTokens(ctx, refreshToken)
	if err != nil {
		c.metrics.Refresh(metrics.RefreshFailed)
		log.Warn().Err(err).Msg("Token refresh failed")
		return "", err
	}
	if rotated == "" {
		rotated = refreshToken
	}

	if err := c.tokens.SetTokens(access, rotated); err != nil {
		c.metrics.Refresh(metrics.RefreshFailed)
		return "", errors.Wrapf(err, "[refresh Coordinator] failed to persist tokens")
	}
	c.metrics.Refresh(metrics.RefreshSucceeded)
	return access, nil
}
