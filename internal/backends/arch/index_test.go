package arch

import (
	"archive/tar"
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

func writeFilesDB(t *testing.T, path string, members map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, content := range members {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
}

func newTestIndex(t *testing.T, rootDir string) *PackageIndex {
	t.Helper()
	log := logging.NewTestLogger(io.Discard)
	res := download.NewResolver(download.NewClient(log), log)
	return New(rootDir, t.TempDir(), res, log)
}

func TestPackagesFor(t *testing.T) {
	rootDir := t.TempDir()
	writeFilesDB(t, filepath.Join(rootDir, "2024", "core", "os", "x86_64", "core.files.tar.gz"),
		map[string]string{
			"gimp-2.10.38-1/desc": `%NAME%
gimp

%VERSION%
2.10.38-1

%ARCH%
x86_64

%PACKAGER%
Arch Dev <dev@archlinux.org>

%FILENAME%
gimp-2.10.38-1-x86_64.pkg.tar.zst

%DESC%
GNU Image Manipulation <Program>
`,
			"gimp-2.10.38-1/files": "%FILES%\nusr/\nusr/bin/\nusr/bin/gimp\n",
			// No version, must be dropped.
			"broken-1/desc": "%NAME%\nbroken\n",
		})

	idx := newTestIndex(t, rootDir)
	defer idx.Release()

	pkgs, err := idx.PackagesFor(context.Background(), "2024", "core", "x86_64", false)
	require.NoError(t, err)
	require.Len(t, pkgs, 1)

	pkg := pkgs[0]
	assert.Equal(t, "gimp", pkg.Name())
	assert.Equal(t, "2.10.38-1", pkg.Version())
	assert.Equal(t, "x86_64", pkg.Architecture())
	assert.Equal(t, "Arch Dev <dev@archlinux.org>", pkg.Maintainer())
	assert.Equal(t, "GNU Image Manipulation <Program>", pkg.Summary()["C"])
	assert.Equal(t, "<p>GNU Image Manipulation &lt;Program&gt;</p>", pkg.Description()["C"])

	files, err := pkg.Contents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/gimp"}, files)
}

func TestPackagesForMissingDatabase(t *testing.T) {
	idx := newTestIndex(t, t.TempDir())
	defer idx.Release()

	pkgs, err := idx.PackagesFor(context.Background(), "2024", "extra", "x86_64", false)
	require.NoError(t, err)
	assert.Empty(t, pkgs)
}

func TestHasChangesAlwaysTrue(t *testing.T) {
	idx := newTestIndex(t, t.TempDir())
	changed, err := idx.HasChanges(context.Background(), nil, "2024", "core", "x86_64")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestPackageForFileUnsupported(t *testing.T) {
	idx := newTestIndex(t, t.TempDir())
	pkg, err := idx.PackageForFile(context.Background(), "x.pkg.tar.zst", "2024", "core")
	require.NoError(t, err)
	assert.Nil(t, pkg)
}
