package alpine

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"path"

	"github.com/rs/zerolog"

	"github.com/ximion/appstream-generator-sub004/internal/archive"
	"github.com/ximion/appstream-generator-sub004/internal/core"
	"github.com/ximion/appstream-generator-sub004/internal/download"
)

// PackageIndex enumerates Alpine packages from APKINDEX.tar.gz.
type PackageIndex struct {
	log     *zerolog.Logger
	res     *download.Resolver
	rootDir string
	tmpDir  string
	cache   *core.TripletCache
	changes *core.AnswerCache
}

var _ core.PackageIndex = (*PackageIndex)(nil)

// New creates an Alpine package index rooted at rootDir (local path or
// mirror URL).
func New(rootDir, tmpDir string, res *download.Resolver, log *zerolog.Logger) *PackageIndex {
	return &PackageIndex{
		log:     log,
		res:     res,
		rootDir: rootDir,
		tmpDir:  tmpDir,
		cache:   core.NewTripletCache(),
		changes: core.NewAnswerCache(),
	}
}

// PackagesFor returns the packages of one (suite, section, arch) triplet.
// A missing index source is fatal: there is no meaningful partial result.
func (idx *PackageIndex) PackagesFor(ctx context.Context, suite, section, arch string, _ bool) ([]core.Package, error) {
	return idx.cache.Get(core.TripletKey(suite, section, arch), func() ([]core.Package, error) {
		return idx.loadTriplet(ctx, suite, section, arch)
	})
}

// resolveIndex fetches APKINDEX.tar.gz under a deterministic cache name
// derived from the triplet.
func (idx *PackageIndex) resolveIndex(ctx context.Context, suite, section, arch string) (string, error) {
	indexFile := path.Join(suite, section, arch, "APKINDEX.tar.gz")
	cacheName := fmt.Sprintf("APKINDEX-%s-%s-%s.tar.gz", suite, section, arch)
	return idx.res.DownloadIfNecessary(ctx, idx.rootDir, idx.tmpDir, indexFile, cacheName)
}

func (idx *PackageIndex) loadTriplet(ctx context.Context, suite, section, arch string) ([]core.Package, error) {
	local, err := idx.resolveIndex(ctx, suite, section, arch)
	if err != nil {
		return nil, err
	}

	d := archive.NewDecompressor()
	if err := d.Open(local); err != nil {
		return nil, err
	}
	defer d.Close()

	data, err := d.ReadData(ctx, "APKINDEX")
	if err != nil {
		return nil, fmt.Errorf("read APKINDEX member: %w", err)
	}
	entries, err := parseAPKIndex(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse APKINDEX: %w", err)
	}

	repoPath := path.Join(suite, section, arch)
	pkgs := make([]core.Package, 0, len(entries))
	for _, e := range entries {
		pkg := newPackage(idx.rootDir, repoPath, idx.tmpDir, idx.res, idx.log)
		pkg.name = e.Name
		pkg.version = e.Version
		pkg.arch = e.Arch
		pkg.maintainer = e.Maintainer
		if e.Description != "" {
			pkg.desc["C"] = "<p>" + html.EscapeString(e.Description) + "</p>"
			pkg.summary["C"] = e.Description
		}
		if !core.IsValidPackage(pkg) {
			idx.log.Warn().Str("id", pkg.ID()).Msg("dropping invalid APKINDEX record")
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	idx.log.Debug().
		Int("packages", len(pkgs)).
		Str("suite", suite).Str("section", section).Str("arch", arch).
		Msg("parsed APKINDEX")
	return pkgs, nil
}

// PackageForFile is not supported by the Alpine backend.
func (idx *PackageIndex) PackageForFile(context.Context, string, string, string) (core.Package, error) {
	return nil, nil
}

// HasChanges fingerprints the APKINDEX archive against the store. The
// answer is memoized per triplet for the index's lifetime.
func (idx *PackageIndex) HasChanges(ctx context.Context, store core.DataStore, suite, section, arch string) (bool, error) {
	key := core.TripletKey(suite, section, arch)
	return idx.changes.Get(key, func() (bool, error) {
		local, err := idx.resolveIndex(ctx, suite, section, arch)
		if err != nil {
			return true, nil
		}
		return core.FingerprintChanged(store, "alpine/"+key, local)
	})
}

// Release drops all cached package lists.
func (idx *PackageIndex) Release() {
	idx.cache.Release()
}
