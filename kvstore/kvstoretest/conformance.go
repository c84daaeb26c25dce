// Package kvstoretest holds the behaviour every kvstore driver must share.
package kvstoretest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/jrsteele09/myoutlet-admin/kvstore"
	"github.com/stretchr/testify/require"
)

// Run exercises a fresh, empty store. The store is not closed.
func Run(t *testing.T, s kvstore.Store) {
	t.Helper()

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get("ns-missing", "access_token")
		require.ErrorIs(t, err, kvstore.ErrNotFound)
	})

	t.Run("put many then get", func(t *testing.T) {
		require.NoError(t, s.PutMany("ns-a", map[string]string{
			"access_token":  "A1",
			"refresh_token": "R1",
		}))
		v, err := s.Get("ns-a", "access_token")
		require.NoError(t, err)
		require.Equal(t, "A1", v)
		v, err = s.Get("ns-a", "refresh_token")
		require.NoError(t, err)
		require.Equal(t, "R1", v)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, s.PutMany("ns-a", map[string]string{"access_token": "A2"}))
		v, err := s.Get("ns-a", "access_token")
		require.NoError(t, err)
		require.Equal(t, "A2", v)
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		_, err := s.Get("ns-b", "access_token")
		require.ErrorIs(t, err, kvstore.ErrNotFound)
	})

	t.Run("delete keys", func(t *testing.T) {
		require.NoError(t, s.Delete("ns-a", "access_token", "user"))
		_, err := s.Get("ns-a", "access_token")
		require.ErrorIs(t, err, kvstore.ErrNotFound)
		v, err := s.Get("ns-a", "refresh_token")
		require.NoError(t, err)
		require.Equal(t, "R1", v)
		require.NoError(t, s.Delete("ns-unknown", "access_token"))
	})

	t.Run("delete namespace", func(t *testing.T) {
		require.NoError(t, s.DeleteNamespace("ns-a"))
		_, err := s.Get("ns-a", "refresh_token")
		require.ErrorIs(t, err, kvstore.ErrNotFound)
		require.NoError(t, s.DeleteNamespace("ns-a"))
	})

	t.Run("concurrent writers", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ns := fmt.Sprintf("ns-c-%d", i)
				errs <- s.PutMany(ns, map[string]string{"access_token": ns})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		for i := 0; i < 10; i++ {
			ns := fmt.Sprintf("ns-c-%d", i)
			v, err := s.Get(ns, "access_token")
			require.NoError(t, err)
			require.Equal(t, ns, v)
		}
	})

	t.Run("namespaces", func(t *testing.T) {
		names, err := s.Namespaces()
		require.NoError(t, err)
		require.NotContains(t, names, "ns-a")
		for i := 0; i < 10; i++ {
			require.Contains(t, names, fmt.Sprintf("ns-c-%d", i))
		}
	})
}
