package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get("access_token")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("access_token", "a1"))
	v, err := s.Get("access_token")
	require.NoError(t, err)
	assert.Equal(t, "a1", v)

	require.NoError(t, s.Delete("access_token"))
	_, err = s.Get("access_token")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("a", "1"))
	require.NoError(t, s.Set("b", "2"))
	require.NoError(t, s.Clear())
	_, err = s.Get("b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnavailableStore(t *testing.T) {
	var s Store = UnavailableStore{}
	assert.ErrorIs(t, s.Set("k", "v"), ErrUnavailable)
	_, err := s.Get("k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Clear(), ErrUnavailable)
}

func TestSQLiteStoreSessionsAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	first, err := OpenSQLite(path, "tab-1")
	require.NoError(t, err)
	defer first.Close()

	second, err := OpenSQLite(path, "tab-2")
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.Set("access_token", "one"))
	require.NoError(t, second.Set("access_token", "two"))

	v, err := first.Get("access_token")
	require.NoError(t, err)
	assert.Equal(t, "one", v)

	require.NoError(t, first.Set("access_token", "one-b"))
	v, err = first.Get("access_token")
	require.NoError(t, err)
	assert.Equal(t, "one-b", v)

	require.NoError(t, first.Clear())
	_, err = first.Get("access_token")
	assert.ErrorIs(t, err, ErrNotFound)

	v, err = second.Get("access_token")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
}

func TestSQLiteStoreGeneratesSessionID(t *testing.T) {
	s, err := OpenSQLite(":memory:", "")
	require.NoError(t, err)
	defer s.Close()

	assert.Len(t, s.SessionID(), 36)
	require.NoError(t, s.Set("user", `{"id":1}`))
	require.NoError(t, s.Delete("user"))
	_, err = s.Get("user")
	assert.ErrorIs(t, err, ErrNotFound)
}
