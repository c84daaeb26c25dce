package httpclient_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/myoutlet-admin/httpclient"
	"github.com/jrsteele09/myoutlet-admin/internal/errors"
	"github.com/jrsteele09/myoutlet-admin/kvstore/memory"
	"github.com/jrsteele09/myoutlet-admin/refresh"
	"github.com/jrsteele09/myoutlet-admin/tokenstore"
	"github.com/stretchr/testify/require"
)

// fakeAPI accepts only the current valid access token.
type fakeAPI struct {
	server     *httptest.Server
	validToken atomic.Value
	hits       atomic.Int32
	bodies     chan string
	always401  atomic.Bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{bodies: make(chan string, 100)}
	api.validToken.Store("A2")
	api.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.hits.Add(1)
		if r.Body != nil {
			b, _ := io.ReadAll(r.Body)
			if len(b) > 0 {
				api.bodies <- string(b)
			}
		}
		switch r.URL.Path {
		case "/boom":
			http.Error(w, "backend exploded", http.StatusInternalServerError)
			return
		case "/public":
			w.Write([]byte(r.Header.Get("Authorization")))
			return
		}
		if api.always401.Load() || r.Header.Get("Authorization") != "Bearer "+api.validToken.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(api.server.Close)
	return api
}

type refreshFunc func(ctx context.Context, refreshToken string) (string, string, error)

func (f refreshFunc) RefreshTokens(ctx context.Context, refreshToken string) (string, string, error) {
	return f(ctx, refreshToken)
}

type testFixture struct {
	api         *fakeAPI
	tokens      *tokenstore.Store
	coordinator *refresh.Coordinator
	client      *httpclient.Client
	refreshes   atomic.Int32
	refreshErr  error
	refreshGate chan struct{}
	logouts     atomic.Int32
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{api: newFakeAPI(t)}
	f.tokens = tokenstore.New(memory.New(), "session-1")
	f.coordinator = refresh.NewCoordinator(f.tokens, refreshFunc(func(ctx context.Context, rt string) (string, string, error) {
		f.refreshes.Add(1)
		if f.refreshGate != nil {
			<-f.refreshGate
		}
		if f.refreshErr != nil {
			return "", "", f.refreshErr
		}
		return "A2", "R2", nil
	}))
	f.client = httpclient.New(f.api.server.URL, f.tokens, f.coordinator,
		httpclient.WithOnLogout(func(context.Context) { f.logouts.Add(1) }),
	)
	return f
}

func TestBearerHeader(t *testing.T) {
	f := setupTestFixture(t)

	req, err := f.client.NewRequest(context.Background(), http.MethodGet, "/public", nil)
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Empty(t, string(b))

	require.NoError(t, f.tokens.SetTokens("A1", "R1"))
	req, err = f.client.NewRequest(context.Background(), http.MethodGet, "/public", nil)
	require.NoError(t, err)
	resp, err = f.client.Do(req)
	require.NoError(t, err)
	b, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, "Bearer A1", string(b))
	require.Empty(t, req.Header.Get("Authorization"), "caller's request must not be modified")
}

func TestNonAuthErrorsPassThrough(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.tokens.SetTokens("A1", "R1"))

	err := f.client.DoJSON(context.Background(), http.MethodGet, "/boom", nil, nil)
	require.Equal(t, http.StatusInternalServerError, errors.StatusCode(err))
	require.Contains(t, err.Error(), "backend exploded")
	require.Equal(t, int32(0), f.refreshes.Load())
}

func TestRefreshAndReplay(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.tokens.SetTokens("A1", "R1"))

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, f.client.DoJSON(context.Background(), http.MethodPost, "/things", map[string]string{"table_name": "T1"}, &out))
	require.True(t, out.OK)
	require.Equal(t, int32(1), f.refreshes.Load())
	require.Equal(t, int32(2), f.api.hits.Load())

	// the body was sent twice, identically
	require.Equal(t, `{"table_name":"T1"}`, <-f.api.bodies)
	require.Equal(t, `{"table_name":"T1"}`, <-f.api.bodies)

	access, refreshToken := f.tokens.ReadDurable()
	require.Equal(t, "A2", access)
	require.Equal(t, "R2", refreshToken)
}

func TestNoRefreshTokenReturns401(t *testing.T) {
	f := setupTestFixture(t)

	err := f.client.DoJSON(context.Background(), http.MethodGet, "/things", nil, nil)
	require.Equal(t, http.StatusUnauthorized, errors.StatusCode(err))
	require.Equal(t, int32(0), f.refreshes.Load())
	require.Equal(t, int32(0), f.logouts.Load())
}

func TestReplayIsNotRetriedTwice(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.tokens.SetTokens("A1", "R1"))
	f.api.always401.Store(true)

	err := f.client.DoJSON(context.Background(), http.MethodGet, "/things", nil, nil)
	require.Equal(t, http.StatusUnauthorized, errors.StatusCode(err))
	require.Equal(t, int32(1), f.refreshes.Load())
	require.Equal(t, int32(2), f.api.hits.Load())
}

func TestRetriedRequestIsNotRefreshed(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.tokens.SetTokens("A1", "R1"))

	req, err := f.client.NewRequest(httpclient.MarkRetried(context.Background()), http.MethodGet, "/things", nil)
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, int32(0), f.refreshes.Load())
}

func TestNonRewindableBodyIsNotReplayed(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.tokens.SetTokens("A1", "R1"))

	req, err := f.client.NewRequest(context.Background(), http.MethodPost, "/things", io.NopCloser(strings.NewReader("x")))
	require.NoError(t, err)
	require.Nil(t, req.GetBody)

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, int32(0), f.refreshes.Load())
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.tokens.SetTokens("A1", "R1"))
	f.refreshGate = make(chan struct{})

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.client.DoJSON(context.Background(), http.MethodGet, "/things", nil, nil)
		}(i)
	}

	require.Eventually(t, func() bool { return f.coordinator.Waiters() == callers-1 }, time.Second, time.Millisecond)
	close(f.refreshGate)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), f.refreshes.Load())
	require.Equal(t, int32(2*callers), f.api.hits.Load())
}

func TestRefreshFailureLogsOutOnce(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.tokens.SetTokens("A1", "R1"))
	f.refreshErr = errors.Wrapf(errors.ErrRefreshRejected, "POST /auth/refresh")
	f.refreshGate = make(chan struct{})

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.client.DoJSON(context.Background(), http.MethodGet, "/things", nil, nil)
		}(i)
	}

	require.Eventually(t, func() bool { return f.coordinator.Waiters() == callers-1 }, time.Second, time.Millisecond)
	close(f.refreshGate)
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, errors.ErrRefreshRejected)
		require.True(t, errors.IsAuthFailure(err))
	}
	require.Equal(t, int32(1), f.refreshes.Load())
	require.Equal(t, int32(1), f.logouts.Load())

	_, ok := f.tokens.GetAccessToken()
	require.False(t, ok)
	_, ok = f.tokens.GetRefreshToken()
	require.False(t, ok)
}
