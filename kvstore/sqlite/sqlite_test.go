package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/jrsteele09/myoutlet-admin/kvstore"
	"github.com/jrsteele09/myoutlet-admin/kvstore/kvstoretest"
	"github.com/jrsteele09/myoutlet-admin/kvstore/sqlite"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "kv.sqlite"))
	require.NoError(t, err)
	defer s.Close()

	kvstoretest.Run(t, s)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.sqlite")

	s, err := kvstore.Open(kvstore.DriverConfig{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	require.NoError(t, s.PutMany("session-1", map[string]string{"access_token": "A1", "user": `{"id":"u1"}`}))
	require.NoError(t, s.Close())

	s, err = kvstore.Open(kvstore.DriverConfig{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get("session-1", "user")
	require.NoError(t, err)
	require.Equal(t, `{"id":"u1"}`, v)
}
