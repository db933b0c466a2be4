package rpmmd

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ximion/appstream-generator-sub004/internal/download"
	"github.com/ximion/appstream-generator-sub004/internal/logging"
)

func writeRepoFile(t *testing.T, path, content string, compressed bool) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	if compressed {
		gz := gzip.NewWriter(f)
		_, err = gz.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, gz.Close())
		return
	}
	_, err = f.WriteString(content)
	require.NoError(t, err)
}

func newTestRepo(t *testing.T) string {
	t.Helper()
	rootDir := t.TempDir()
	osDir := filepath.Join(rootDir, "40", "Everything", "x86_64", "os")
	writeRepoFile(t, filepath.Join(osDir, "repodata", "repomd.xml"), repomdXML, false)
	writeRepoFile(t, filepath.Join(osDir, "repodata", "abc123-primary.xml.gz"), primaryXML, true)
	writeRepoFile(t, filepath.Join(osDir, "repodata", "def456-filelists.xml.gz"), filelistsXML, true)
	return rootDir
}

func newTestIndex(t *testing.T, rootDir string) *PackageIndex {
	t.Helper()
	log := logging.NewTestLogger(io.Discard)
	res := download.NewResolver(download.NewClient(log), log)
	return New(rootDir, t.TempDir(), res, log)
}

func TestPackagesFor(t *testing.T) {
	idx := newTestIndex(t, newTestRepo(t))
	defer idx.Release()

	pkgs, err := idx.PackagesFor(context.Background(), "40", "Everything", "x86_64", false)
	require.NoError(t, err)
	require.Len(t, pkgs, 2)

	gimp := pkgs[0]
	assert.Equal(t, "gimp", gimp.Name())
	assert.Equal(t, "2:2.10.38-1.fc40", gimp.Version())
	assert.Equal(t, "x86_64", gimp.Architecture())
	assert.Equal(t, "Fedora Project", gimp.Maintainer())
	assert.Equal(t, "GNU Image Manipulation Program", gimp.Summary()["C"])

	files, err := gimp.Contents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/gimp", "/usr/share/applications/gimp.desktop"}, files)

	// eog has no filelists entry and reports empty contents.
	files, err = pkgs[1].Contents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestPackagesForMissingRepodataIsFatal(t *testing.T) {
	idx := newTestIndex(t, t.TempDir())
	defer idx.Release()

	_, err := idx.PackagesFor(context.Background(), "40", "Everything", "x86_64", false)
	assert.Error(t, err)
}

func TestHasChanges(t *testing.T) {
	rootDir := newTestRepo(t)
	st := &fakeStore{hashes: make(map[string]string)}

	idx := newTestIndex(t, rootDir)
	changed, err := idx.HasChanges(context.Background(), st, "40", "Everything", "x86_64")
	require.NoError(t, err)
	assert.True(t, changed)

	idx2 := newTestIndex(t, rootDir)
	changed, err = idx2.HasChanges(context.Background(), st, "40", "Everything", "x86_64")
	require.NoError(t, err)
	assert.False(t, changed)
}

type fakeStore struct {
	hashes map[string]string
}

func (s *fakeStore) RepoHash(key string) (string, error) { return s.hashes[key], nil }

func (s *fakeStore) SetRepoHash(key, hash string) error {
	s.hashes[key] = hash
	return nil
}

func (s *fakeStore) Close() error { return nil }
