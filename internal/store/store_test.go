package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRepoHashRoundTrip(t *testing.T) {
	s := openTestStore(t)

	hash, err := s.RepoHash("debian/trixie/main/amd64")
	require.NoError(t, err)
	assert.Empty(t, hash, "unknown key yields empty hash")

	require.NoError(t, s.SetRepoHash("debian/trixie/main/amd64", "aaa"))
	hash, err = s.RepoHash("debian/trixie/main/amd64")
	require.NoError(t, err)
	assert.Equal(t, "aaa", hash)

	require.NoError(t, s.SetRepoHash("debian/trixie/main/amd64", "bbb"))
	hash, err = s.RepoHash("debian/trixie/main/amd64")
	require.NoError(t, err)
	assert.Equal(t, "bbb", hash)
}

func TestRepoHashKeysAreIndependent(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SetRepoHash("debian/trixie/main/amd64", "aaa"))
	require.NoError(t, s.SetRepoHash("debian/trixie/main/i386", "bbb"))

	hash, err := s.RepoHash("debian/trixie/main/amd64")
	require.NoError(t, err)
	assert.Equal(t, "aaa", hash)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.SetRepoHash("k", "v"))
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	hash, err := s.RepoHash("k")
	require.NoError(t, err)
	assert.Equal(t, "v", hash)
}
