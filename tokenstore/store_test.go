package tokenstore_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/myoutlet-admin/kvstore"
	"github.com/jrsteele09/myoutlet-admin/kvstore/memory"
	"github.com/jrsteele09/myoutlet-admin/restaurants"
	"github.com/jrsteele09/myoutlet-admin/session"
	"github.com/jrsteele09/myoutlet-admin/tokenstore"
	"github.com/stretchr/testify/require"
)

const testNamespace = "session-1"

type testFixture struct {
	durable *memory.Store
	store   *tokenstore.Store
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	durable := memory.New()
	return &testFixture{durable: durable, store: tokenstore.New(durable, testNamespace)}
}

func TestTokensFallBackToDurable(t *testing.T) {
	f := setupTestFixture(t)

	_, ok := f.store.GetAccessToken()
	require.False(t, ok)

	require.NoError(t, f.durable.PutMany(testNamespace, map[string]string{
		tokenstore.KeyAccessToken:  "A-durable",
		tokenstore.KeyRefreshToken: "R-durable",
	}))

	access, ok := f.store.GetAccessToken()
	require.True(t, ok)
	require.Equal(t, "A-durable", access)
	refresh, ok := f.store.GetRefreshToken()
	require.True(t, ok)
	require.Equal(t, "R-durable", refresh)
}

func TestMirrorWinsOverDurable(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.SetTokens("A1", "R1"))

	require.NoError(t, f.durable.PutMany(testNamespace, map[string]string{tokenstore.KeyAccessToken: "A-other"}))

	access, _ := f.store.GetAccessToken()
	require.Equal(t, "A1", access)

	durableAccess, durableRefresh := f.store.ReadDurable()
	require.Equal(t, "A-other", durableAccess)
	require.Equal(t, "R1", durableRefresh)
}

func TestClear(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.SetTokens("A1", "R1"))
	require.NoError(t, f.store.SetUser(`{"id":"u1"}`))
	f.store.SetSessionData(session.Present([]restaurants.Store{{ID: "s1"}}))
	f.store.SetFetchStatus(tokenstore.FetchFailed)
	require.True(t, f.store.HasSessionData())

	require.NoError(t, f.store.Clear())

	_, ok := f.store.GetAccessToken()
	require.False(t, ok)
	_, ok = f.store.GetRefreshToken()
	require.False(t, ok)
	_, ok = f.store.User()
	require.False(t, ok)
	require.False(t, f.store.HasSessionData())
	require.Equal(t, tokenstore.FetchIdle, f.store.FetchStatus())

	for _, key := range []string{tokenstore.KeyAccessToken, tokenstore.KeyRefreshToken, tokenstore.KeyUser} {
		_, err := f.durable.Get(testNamespace, key)
		require.ErrorIs(t, err, kvstore.ErrNotFound)
	}
}

type failingStore struct {
	kvstore.Store
}

func (failingStore) PutMany(string, map[string]string) error { return errors.New("disk full") }
func (failingStore) Delete(string, ...string) error          { return errors.New("disk full") }

func TestDurableFailures(t *testing.T) {
	durable := memory.New()
	s := tokenstore.New(failingStore{Store: durable}, testNamespace)

	t.Run("failed write leaves mirror untouched", func(t *testing.T) {
		require.Error(t, s.SetTokens("A1", "R1"))
		_, ok := s.GetAccessToken()
		require.False(t, ok)
	})

	t.Run("failed clear still reports no credentials", func(t *testing.T) {
		require.NoError(t, durable.PutMany(testNamespace, map[string]string{
			tokenstore.KeyAccessToken:  "A-durable",
			tokenstore.KeyRefreshToken: "R-durable",
			tokenstore.KeyUser:         `{"id":"u1"}`,
		}))
		_, ok := s.GetRefreshToken()
		require.True(t, ok)
		s.SetSessionData(session.Present([]restaurants.Store{{ID: "s1"}}))

		require.Error(t, s.Clear())

		require.False(t, s.HasSessionData())
		_, ok = s.GetAccessToken()
		require.False(t, ok)
		_, ok = s.GetRefreshToken()
		require.False(t, ok)
		_, ok = s.User()
		require.False(t, ok)
		access, refresh := s.ReadDurable()
		require.Empty(t, access)
		require.Empty(t, refresh)
	})
}

func TestNoPartialTokenPair(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.SetTokens("A0", "R0"))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	mismatch := make(chan string, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			a, r := f.store.ReadDurable()
			if a[1:] != r[1:] {
				select {
				case mismatch <- a + "/" + r:
				default:
				}
				return
			}
		}
	}()

	for i := 1; i < 200; i++ {
		n := string(rune('a' + i%26))
		require.NoError(t, f.store.SetTokens("A"+n, "R"+n))
	}
	close(stop)
	wg.Wait()

	select {
	case m := <-mismatch:
		t.Fatalf("observed partial token pair %s", m)
	default:
	}
}

func TestClaims(t *testing.T) {
	f := setupTestFixture(t)

	_, ok := f.store.Claims()
	require.False(t, ok)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "owner-1",
		"email": "owner@example.com",
		"name":  "Owner",
		"exp":   exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	require.NoError(t, f.store.SetTokens(token, "R1"))

	c, ok := f.store.Claims()
	require.True(t, ok)
	require.Equal(t, "owner-1", c.Subject)
	require.Equal(t, "owner@example.com", c.Email)
	require.Equal(t, "Owner", c.Name)
	require.True(t, exp.Equal(c.ExpiresAt))

	_, err = tokenstore.ParseClaims("not-a-jwt")
	require.Error(t, err)
}
