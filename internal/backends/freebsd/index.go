package freebsd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ximion/appstream-generator-sub004/internal/archive"
	"github.com/ximion/appstream-generator-sub004/internal/core"
	"github.com/ximion/appstream-generator-sub004/internal/download"
)

// PackageIndex enumerates FreeBSD packages from the repository catalog
// (packagesite.pkg, holding JSON-lines manifests in packagesite.yaml).
type PackageIndex struct {
	log     *zerolog.Logger
	res     *download.Resolver
	fs      afero.Fs
	rootDir string
	tmpDir  string
	cache   *core.TripletCache
	changes *core.AnswerCache
}

var _ core.PackageIndex = (*PackageIndex)(nil)

// New creates a FreeBSD package index rooted at rootDir.
func New(rootDir, tmpDir string, res *download.Resolver, log *zerolog.Logger) *PackageIndex {
	return &PackageIndex{
		log:     log,
		res:     res,
		fs:      afero.NewOsFs(),
		rootDir: rootDir,
		tmpDir:  tmpDir,
		cache:   core.NewTripletCache(),
		changes: core.NewAnswerCache(),
	}
}

// PackagesFor returns the packages of one (suite, section, arch) triplet.
func (idx *PackageIndex) PackagesFor(ctx context.Context, suite, section, arch string, _ bool) ([]core.Package, error) {
	return idx.cache.Get(core.TripletKey(suite, section, arch), func() ([]core.Package, error) {
		return idx.loadTriplet(ctx, suite, section, arch)
	})
}

func (idx *PackageIndex) resolveCatalog(ctx context.Context, suite, section, arch string) (string, error) {
	catalogFile := path.Join(suite, section, arch, "packagesite.pkg")
	cacheName := fmt.Sprintf("packagesite-%s-%s-%s.pkg", suite, section, arch)
	return idx.res.DownloadIfNecessary(ctx, idx.rootDir, idx.tmpDir, catalogFile, cacheName)
}

func (idx *PackageIndex) loadTriplet(ctx context.Context, suite, section, arch string) ([]core.Package, error) {
	local, err := idx.resolveCatalog(ctx, suite, section, arch)
	if err != nil {
		return nil, err
	}

	d := archive.NewDecompressor()
	if err := d.Open(local); err != nil {
		return nil, err
	}
	defer d.Close()

	data, err := d.ReadData(ctx, "packagesite.yaml")
	if err != nil {
		return nil, fmt.Errorf("read packagesite.yaml member: %w", err)
	}

	// The catalog is one JSON object per line, despite the .yaml name.
	var pkgs []core.Package
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var m manifest
		if err := json.Unmarshal(line, &m); err != nil {
			idx.log.Warn().Err(err).Msg("dropping unparseable catalog manifest")
			continue
		}
		pkg := newPhysical(idx.rootDir, idx.tmpDir, m, idx.res, idx.log)
		if !core.IsValidPackage(pkg) {
			idx.log.Warn().Str("id", pkg.ID()).Msg("dropping invalid catalog manifest")
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan packagesite.yaml: %w", err)
	}

	idx.log.Debug().
		Int("packages", len(pkgs)).
		Str("suite", suite).Str("section", section).Str("arch", arch).
		Msg("parsed FreeBSD package catalog")
	return pkgs, nil
}

// PackageForFile treats fname as a ports build work directory and builds
// a staged package from it.
func (idx *PackageIndex) PackageForFile(ctx context.Context, fname, _, _ string) (core.Package, error) {
	return NewStaged(ctx, idx.fs, fname, idx.log)
}

// HasChanges fingerprints the catalog against the store; memoized per
// triplet.
func (idx *PackageIndex) HasChanges(ctx context.Context, store core.DataStore, suite, section, arch string) (bool, error) {
	key := core.TripletKey(suite, section, arch)
	return idx.changes.Get(key, func() (bool, error) {
		local, err := idx.resolveCatalog(ctx, suite, section, arch)
		if err != nil {
			return true, nil
		}
		return core.FingerprintChanged(store, "freebsd/"+key, local)
	})
}

// Release drops all cached package lists.
func (idx *PackageIndex) Release() {
	idx.cache.Release()
}
