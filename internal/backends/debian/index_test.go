package debian

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blakesmith/ar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ximion/appstream-generator-sub004/internal/download"
	"github.com/ximion/appstream-generator-sub004/internal/logging"
)

type memStore struct {
	hashes map[string]string
}

func newMemStore() *memStore {
	return &memStore{hashes: make(map[string]string)}
}

func (s *memStore) RepoHash(key string) (string, error) { return s.hashes[key], nil }

func (s *memStore) SetRepoHash(key, hash string) error {
	s.hashes[key] = hash
	return nil
}

func (s *memStore) Close() error { return nil }

func writeGz(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
}

const packagesIndex = `Package: gimp
Version: 2.10.37-1
Architecture: amd64
Maintainer: Debian GNOME Maintainers <pkg-gnome@lists.debian.org>
Filename: pool/main/g/gimp/gimp_2.10.37-1_amd64.deb
Description-md5: 0aaa
Description: GNU Image Manipulation Program
 Old revision.

Package: gimp
Version: 2.10.38-1
Architecture: amd64
Maintainer: Debian GNOME Maintainers <pkg-gnome@lists.debian.org>
Filename: pool/main/g/gimp/gimp_2.10.38-1_amd64.deb
Description-md5: 0abc
Description: GNU Image Manipulation Program
 GIMP lets you draw, paint and edit images.

Package: broken
Architecture: amd64
Description: stanza without a version

Package: eog
Version: 45.3-1
Architecture: amd64
Filename: pool/main/e/eog/eog_45.3-1_amd64.deb
Description: Eye of GNOME graphics viewer program
`

const translationIndex = `Package: gimp
Description-md5: 0abc
Description-en: GNU Image Manipulation Program
 GIMP lets you draw, paint and edit images, translated.
`

func newTestRepo(t *testing.T) string {
	t.Helper()
	rootDir := t.TempDir()
	writeGz(t, filepath.Join(rootDir, "dists", "trixie", "main", "binary-amd64", "Packages.gz"), packagesIndex)
	writeGz(t, filepath.Join(rootDir, "dists", "trixie", "main", "i18n", "Translation-en.gz"), translationIndex)
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

	pkgs, err := idx.PackagesFor(context.Background(), "trixie", "main", "amd64", false)
	require.NoError(t, err)
	require.Len(t, pkgs, 2, "duplicate resolved, invalid stanza dropped")

	gimp := pkgs[0]
	assert.Equal(t, "gimp", gimp.Name())
	assert.Equal(t, "2.10.38-1", gimp.Version(), "newest duplicate wins")
	assert.Equal(t, "GNU Image Manipulation Program", gimp.Summary()["C"])
	assert.Equal(t, "<p>GIMP lets you draw, paint and edit images.</p>", gimp.Description()["C"])
	assert.NotContains(t, gimp.Description(), "en")

	assert.Equal(t, "eog", pkgs[1].Name())
}

func TestPackagesForWithLongDescs(t *testing.T) {
	idx := newTestIndex(t, newTestRepo(t))
	defer idx.Release()

	pkgs, err := idx.PackagesFor(context.Background(), "trixie", "main", "amd64", true)
	require.NoError(t, err)

	gimp := pkgs[0]
	assert.Equal(t, "GNU Image Manipulation Program", gimp.Summary()["en"])
	assert.Equal(t, "<p>GIMP lets you draw, paint and edit images, translated.</p>", gimp.Description()["en"])
}

func TestPackagesForMissingIndexIsFatal(t *testing.T) {
	idx := newTestIndex(t, t.TempDir())
	defer idx.Release()

	_, err := idx.PackagesFor(context.Background(), "trixie", "main", "amd64", false)
	assert.Error(t, err)
}

func TestHasChanges(t *testing.T) {
	rootDir := newTestRepo(t)
	store := newMemStore()

	idx := newTestIndex(t, rootDir)
	changed, err := idx.HasChanges(context.Background(), store, "trixie", "main", "amd64")
	require.NoError(t, err)
	assert.True(t, changed, "unseen index counts as changed")

	// The answer is stable within one index lifetime.
	changed, err = idx.HasChanges(context.Background(), store, "trixie", "main", "amd64")
	require.NoError(t, err)
	assert.True(t, changed)

	// A fresh index over the same store sees the recorded fingerprint.
	idx2 := newTestIndex(t, rootDir)
	changed, err = idx2.HasChanges(context.Background(), store, "trixie", "main", "amd64")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCompareVersions(t *testing.T) {
	assert.Positive(t, compareVersions("2.10.38-1", "2.10.37-1"))
	assert.Negative(t, compareVersions("45.3-1", "45.4-1"))
	// Unparseable versions fall back to lexical ordering.
	assert.Positive(t, compareVersions("1:2.0", "1:1.0"))
}

func makeDeb(t *testing.T, control string) []byte {
	t.Helper()

	makeTarGz := func(name string, content []byte) []byte {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		tw := tar.NewWriter(gz)
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write(content)
		require.NoError(t, err)
		require.NoError(t, tw.Close())
		require.NoError(t, gz.Close())
		return buf.Bytes()
	}

	var buf bytes.Buffer
	w := ar.NewWriter(&buf)
	require.NoError(t, w.WriteGlobalHeader())
	for _, member := range []struct {
		name string
		body []byte
	}{
		{"debian-binary", []byte("2.0\n")},
		{"control.tar.gz", makeTarGz("./control", []byte(control))},
		{"data.tar.gz", makeTarGz("./usr/bin/tool", []byte("elf"))},
	} {
		require.NoError(t, w.WriteHeader(&ar.Header{
			Name:    member.name,
			ModTime: time.Unix(0, 0),
			Mode:    0o644,
			Size:    int64(len(member.body)),
		}))
		_, err := w.Write(member.body)
		require.NoError(t, err)
	}
	return buf.Bytes()
}

func TestPackageForFile(t *testing.T) {
	control := `Package: tool
Version: 1.0-1
Architecture: amd64
Maintainer: Someone <someone@debian.org>
Description: A small tool
 It does one thing well.
`
	debPath := filepath.Join(t.TempDir(), "tool_1.0-1_amd64.deb")
	require.NoError(t, os.WriteFile(debPath, makeDeb(t, control), 0o644))

	idx := newTestIndex(t, t.TempDir())
	pkg, err := idx.PackageForFile(context.Background(), debPath, "trixie", "main")
	require.NoError(t, err)

	assert.Equal(t, "tool/1.0-1/amd64", pkg.ID())
	assert.Equal(t, "A small tool", pkg.Summary()["C"])

	files, err := pkg.Contents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/tool"}, files)

	data, err := pkg.GetFileData(context.Background(), "/usr/bin/tool")
	require.NoError(t, err)
	assert.Equal(t, []byte("elf"), data)
}
