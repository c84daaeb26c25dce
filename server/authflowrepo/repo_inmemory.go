package authflowrepo

import (
	"sync"
	"time"

	"github.com/jrsteele09/myoutlet-admin/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu     sync.RWMutex
	states map[string]AuthFlowState
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		states: make(map[string]AuthFlowState),
	}
}

func (r *InMemoryRepo) Upsert(state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.Wrapf(errors.ErrInvalidState, "[authflowrepo Upsert] empty state")
	}
	if authState == nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "[authflowrepo Upsert] nil auth state")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state] = *authState
	return nil
}

// Get returns a copy of the flow started with state.
func (r *InMemoryRepo) Get(state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.Wrapf(errors.ErrInvalidState, "[authflowrepo Get] empty state")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	authState, ok := r.states[state]
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidState, "[authflowrepo Get] unknown state")
	}
	return &authState, nil
}

func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return errors.Wrapf(errors.ErrInvalidState, "[authflowrepo Delete] empty state")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, state)
	return nil
}

// DeleteExpired drops abandoned flows and returns how many were removed.
func (r *InMemoryRepo) DeleteExpired(now time.Time, ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for state, s := range r.states {
		if s.Expired(now, ttl) {
			delete(r.states, state)
			removed++
		}
	}
	return removed
}
