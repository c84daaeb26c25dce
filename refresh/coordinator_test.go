package refresh_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/myoutlet-admin/internal/errors"
	"github.com/jrsteele09/myoutlet-admin/kvstore/memory"
	"github.com/jrsteele09/myoutlet-admin/refresh"
	"github.com/jrsteele09/myoutlet-admin/tokenstore"
	"github.com/stretchr/testify/require"
)

// fakeRefresher blocks every call until release is closed.
type fakeRefresher struct {
	calls   atomic.Int32
	release chan struct{}
	access  string
	rotated string
	err     error
	gotRT   atomic.Value
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{release: make(chan struct{}), access: "A2", rotated: "R2"}
}

func (f *fakeRefresher) RefreshTokens(ctx context.Context, refreshToken string) (string, string, error) {
	f.calls.Add(1)
	f.gotRT.Store(refreshToken)
	select {
	case <-f.release:
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
	if f.err != nil {
		return "", "", f.err
	}
	return f.access, f.rotated, nil
}

type testFixture struct {
	tokens      *tokenstore.Store
	refresher   *fakeRefresher
	coordinator *refresh.Coordinator
}

func setupTestFixture(t *testing.T, opts ...refresh.Option) *testFixture {
	t.Helper()
	tokens := tokenstore.New(memory.New(), "session-1")
	require.NoError(t, tokens.SetTokens("A1", "R1"))
	r := newFakeRefresher()
	return &testFixture{
		tokens:      tokens,
		refresher:   r,
		coordinator: refresh.NewCoordinator(tokens, r, opts...),
	}
}

// startRefresh begins a refresh in the background and waits until it is in flight.
func (f *testFixture) startRefresh(t *testing.T) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		_, err := f.coordinator.Refresh(context.Background())
		done <- err
	}()
	require.Eventually(t, f.coordinator.InFlight, time.Second, time.Millisecond)
	return done
}

func TestSingleRefreshForConcurrentCallers(t *testing.T) {
	f := setupTestFixture(t)
	initiator := f.startRefresh(t)

	const callers = 20
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = f.coordinator.Refresh(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return f.coordinator.Waiters() == callers }, time.Second, time.Millisecond)
	close(f.refresher.release)
	wg.Wait()

	require.NoError(t, <-initiator)
	require.Equal(t, int32(1), f.refresher.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "A2", tokens[i])
	}
	require.False(t, f.coordinator.InFlight())
}

func TestWaitersSettleInFIFOOrder(t *testing.T) {
	f := setupTestFixture(t)
	initiator := f.startRefresh(t)

	var mu sync.Mutex
	var order []int
	var tokens []string
	for i := 0; i < 5; i++ {
		i := i
		joined := f.coordinator.Join(func(token string) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, i)
			tokens = append(tokens, token)
		}, func(err error) {
			t.Errorf("waiter %d rejected: %v", i, err)
		})
		require.True(t, joined)
	}

	close(f.refresher.release)
	require.NoError(t, <-initiator)

	require.Equal(t, 0, f.coordinator.Waiters())
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
	require.Equal(t, []string{"A2", "A2", "A2", "A2", "A2"}, tokens)
}

func TestJoinWithoutFlight(t *testing.T) {
	f := setupTestFixture(t)
	require.False(t, f.coordinator.Join(func(string) {}, func(error) {}))
}

func TestFailureRejectsEveryWaiter(t *testing.T) {
	f := setupTestFixture(t)
	backendErr := apperrors.Wrapf(apperrors.ErrRefreshRejected, "POST /auth/refresh")
	f.refresher.err = backendErr
	initiator := f.startRefresh(t)

	var rejected []error
	var mu sync.Mutex
	for i := 0; i < 3; i++ {
		require.True(t, f.coordinator.Join(func(string) {
			t.Error("waiter resolved on failure")
		}, func(err error) {
			mu.Lock()
			defer mu.Unlock()
			rejected = append(rejected, err)
		}))
	}

	close(f.refresher.release)
	require.ErrorIs(t, <-initiator, apperrors.ErrRefreshRejected)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, rejected, 3)
	for _, err := range rejected {
		require.Same(t, backendErr, err)
	}

	// the stored tokens are untouched; clearing is the caller's decision
	access, _ := f.tokens.GetAccessToken()
	require.Equal(t, "A1", access)
}

func TestNoRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.tokens.Clear())

	_, err := f.coordinator.Refresh(context.Background())
	require.ErrorIs(t, err, apperrors.ErrCredentialAbsent)
	require.Equal(t, int32(0), f.refresher.calls.Load())
	require.False(t, f.coordinator.InFlight())
}

func TestTokenRotation(t *testing.T) {
	t.Run("rotated refresh token is stored", func(t *testing.T) {
		f := setupTestFixture(t)
		close(f.refresher.release)

		token, initiated, err := f.coordinator.RefreshInitiated(context.Background())
		require.NoError(t, err)
		require.True(t, initiated)
		require.Equal(t, "A2", token)
		require.Equal(t, "R1", f.refresher.gotRT.Load())

		access, refreshToken := f.tokens.ReadDurable()
		require.Equal(t, "A2", access)
		require.Equal(t, "R2", refreshToken)
	})

	t.Run("existing refresh token is kept", func(t *testing.T) {
		f := setupTestFixture(t)
		f.refresher.rotated = ""
		close(f.refresher.release)

		_, err := f.coordinator.Refresh(context.Background())
		require.NoError(t, err)

		access, refreshToken := f.tokens.ReadDurable()
		require.Equal(t, "A2", access)
		require.Equal(t, "R1", refreshToken)
	})
}

func TestWaiterContextCancelled(t *testing.T) {
	f := setupTestFixture(t)
	initiator := f.startRefresh(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, initiated, err := f.coordinator.RefreshInitiated(ctx)
	require.False(t, initiated)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, f.coordinator.InFlight())

	close(f.refresher.release)
	require.NoError(t, <-initiator)
}

func TestRefreshTimeout(t *testing.T) {
	f := setupTestFixture(t, refresh.WithTimeout(10*time.Millisecond))

	_, err := f.coordinator.Refresh(context.Background())
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.False(t, f.coordinator.InFlight())
}

func TestInitiatorCancellationDoesNotAbortRefresh(t *testing.T) {
	f := setupTestFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := f.coordinator.Refresh(ctx)
		done <- err
	}()
	require.Eventually(t, f.coordinator.InFlight, time.Second, time.Millisecond)
	cancel()
	close(f.refresher.release)

	require.NoError(t, <-done)
	access, _ := f.tokens.GetAccessToken()
	require.Equal(t, "A2", access)
}
