package ubuntu

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ximion/appstream-generator-sub004/internal/backends/debian"
	"github.com/ximion/appstream-generator-sub004/internal/core"
	"github.com/ximion/appstream-generator-sub004/internal/download"
	"github.com/ximion/appstream-generator-sub004/internal/helpers"
)

// PackageIndex layers language-pack handling over the Debian index:
// language-pack-* packages encountered while loading a triplet are
// registered with the langpack provider, and every returned package can
// answer desktop-entry translation lookups.
type PackageIndex struct {
	log      *zerolog.Logger
	deb      *debian.PackageIndex
	provider *LangpackProvider
	cache    *core.TripletCache
}

var _ core.PackageIndex = (*PackageIndex)(nil)

// New creates an Ubuntu package index rooted at rootDir. Language packs
// are extracted under tmpDir.
func New(rootDir, tmpDir string, res *download.Resolver, runner helpers.CommandRunner, workers int, log *zerolog.Logger) *PackageIndex {
	return &PackageIndex{
		log:      log,
		deb:      debian.New(rootDir, tmpDir, res, log),
		provider: NewLangpackProvider(afero.NewOsFs(), runner, filepath.Join(tmpDir, "ubuntu-langpack"), workers, log),
		cache:    core.NewTripletCache(),
	}
}

// PackagesFor returns the packages of one triplet, wrapped for
// translation support.
func (idx *PackageIndex) PackagesFor(ctx context.Context, suite, section, arch string, withLongDescs bool) ([]core.Package, error) {
	key := core.TripletKey(suite, section, arch)
	if withLongDescs {
		key += "+i18n"
	}
	return idx.cache.Get(key, func() ([]core.Package, error) {
		pkgs, err := idx.deb.PackagesFor(ctx, suite, section, arch, withLongDescs)
		if err != nil {
			return nil, err
		}
		wrapped := make([]core.Package, 0, len(pkgs))
		for _, pkg := range pkgs {
			if strings.HasPrefix(pkg.Name(), "language-pack-") {
				idx.provider.AddLanguagePacks(pkg)
			}
			wrapped = append(wrapped, wrap(pkg, idx.provider, idx.log))
		}
		return wrapped, nil
	})
}

// PackageForFile builds a package from a local .deb file.
func (idx *PackageIndex) PackageForFile(ctx context.Context, fname, suite, section string) (core.Package, error) {
	pkg, err := idx.deb.PackageForFile(ctx, fname, suite, section)
	if err != nil || pkg == nil {
		return nil, err
	}
	return wrap(pkg, idx.provider, idx.log), nil
}

// HasChanges delegates to the underlying Debian index.
func (idx *PackageIndex) HasChanges(ctx context.Context, store core.DataStore, suite, section, arch string) (bool, error) {
	return idx.deb.HasChanges(ctx, store, suite, section, arch)
}

// Release drops cached package lists and the registered language packs.
func (idx *PackageIndex) Release() {
	idx.cache.Release()
	idx.deb.Release()
	idx.provider.Clear()
}
