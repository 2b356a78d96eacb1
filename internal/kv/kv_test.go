package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	t.Helper()

	_, err := s.Get("chat")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("chat", []byte(`[1]`)))
	v, err := s.Get("chat")
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(v))

	require.NoError(t, s.Set("chat", []byte(`[1,2]`)))
	v, err = s.Get("chat")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(v))

	require.NoError(t, s.Delete("chat"))
	_, err = s.Get("chat")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting a missing key is fine
	assert.NoError(t, s.Delete("nope"))
}

func TestMemory(t *testing.T) {
	testStore(t, NewMemory())
}

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	buf := []byte("abc")
	require.NoError(t, m.Set("k", buf))
	buf[0] = 'x'

	v, err := m.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestSQLiteInMemory(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)
}

func TestSQLiteFileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dhwani.sqlite")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("settings", []byte(`{"language":"te"}`)))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get("settings")
	require.NoError(t, err)
	assert.JSONEq(t, `{"language":"te"}`, string(v))
}
