package rpmmd

import (
	"context"
	"fmt"
	"html"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ximion/appstream-generator-sub004/internal/archive"
	"github.com/ximion/appstream-generator-sub004/internal/core"
	"github.com/ximion/appstream-generator-sub004/internal/download"
)

// PackageIndex enumerates packages from rpm-md repodata (repomd.xml,
// primary.xml and filelists.xml).
type PackageIndex struct {
	log     *zerolog.Logger
	res     *download.Resolver
	rootDir string
	tmpDir  string
	cache   *core.TripletCache
	changes *core.AnswerCache
}

var _ core.PackageIndex = (*PackageIndex)(nil)

// New creates an rpm-md package index rooted at rootDir (local path or
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
// Missing or unreadable repodata is fatal.
func (idx *PackageIndex) PackagesFor(ctx context.Context, suite, section, arch string, _ bool) ([]core.Package, error) {
	return idx.cache.Get(core.TripletKey(suite, section, arch), func() ([]core.Package, error) {
		return idx.loadTriplet(ctx, suite, section, arch)
	})
}

// resolveRepomd fetches repodata/repomd.xml for one triplet.
func (idx *PackageIndex) resolveRepomd(ctx context.Context, suite, section, arch string) (string, error) {
	repomdFile := path.Join(suite, section, arch, "os", "repodata", "repomd.xml")
	cacheName := fmt.Sprintf("repomd-%s-%s-%s.xml", suite, section, arch)
	return idx.res.DownloadIfNecessary(ctx, idx.rootDir, idx.tmpDir, repomdFile, cacheName)
}

// resolveMetadata fetches one metadata file referenced by repomd.xml,
// e.g. repodata/<hash>-primary.xml.gz.
func (idx *PackageIndex) resolveMetadata(ctx context.Context, suite, section, arch, href string) (string, error) {
	mdFile := path.Join(suite, section, arch, "os", href)
	cacheName := fmt.Sprintf("%s-%s-%s-%s", suite, section, arch, strings.ReplaceAll(href, "/", "_"))
	return idx.res.DownloadIfNecessary(ctx, idx.rootDir, idx.tmpDir, mdFile, cacheName)
}

func (idx *PackageIndex) loadTriplet(ctx context.Context, suite, section, arch string) ([]core.Package, error) {
	repomdLocal, err := idx.resolveRepomd(ctx, suite, section, arch)
	if err != nil {
		return nil, err
	}
	mdr, err := archive.OpenCompressed(repomdLocal)
	if err != nil {
		return nil, err
	}
	md, err := parseRepomd(mdr)
	mdr.Close()
	if err != nil {
		return nil, err
	}

	primaryHref := md.locationFor("primary")
	if primaryHref == "" {
		return nil, fmt.Errorf("repomd.xml for %s/%s/%s lists no primary metadata", suite, section, arch)
	}

	primary, err := idx.readPrimary(ctx, suite, section, arch, primaryHref)
	if err != nil {
		return nil, err
	}

	// filelists is optional metadata; without it packages simply report
	// empty contents.
	var filesByID map[string][]string
	if href := md.locationFor("filelists"); href != "" {
		filesByID, err = idx.readFilelists(ctx, suite, section, arch, href)
		if err != nil {
			return nil, err
		}
	} else {
		idx.log.Warn().
			Str("suite", suite).Str("section", section).Str("arch", arch).
			Msg("repomd.xml lists no filelists metadata, package contents will be empty")
	}

	repoPath := path.Join(suite, section, arch, "os")
	pkgs := make([]core.Package, 0, len(primary))
	for _, pp := range primary {
		pkg := newPackage(idx.rootDir, repoPath, idx.tmpDir, idx.res, idx.log)
		pkg.name = pp.Name
		pkg.version = pp.evr()
		pkg.arch = pp.Arch
		pkg.maintainer = pp.Packager
		pkg.location = pp.Location.Href
		if pp.Summary != "" {
			pkg.summary["C"] = pp.Summary
		}
		if pp.Description != "" {
			pkg.desc["C"] = "<p>" + html.EscapeString(strings.TrimSpace(pp.Description)) + "</p>"
		}
		if pp.Checksum.PkgID == "YES" {
			pkg.contents = filesByID[pp.Checksum.Value]
		}
		if !core.IsValidPackage(pkg) {
			idx.log.Warn().Str("id", pkg.ID()).Msg("dropping invalid primary.xml record")
			continue
		}
		pkgs = append(pkgs, pkg)
	}

	idx.log.Debug().
		Int("packages", len(pkgs)).
		Str("suite", suite).Str("section", section).Str("arch", arch).
		Msg("parsed rpm-md repodata")
	return pkgs, nil
}

func (idx *PackageIndex) readPrimary(ctx context.Context, suite, section, arch, href string) ([]primaryPackage, error) {
	local, err := idx.resolveMetadata(ctx, suite, section, arch, href)
	if err != nil {
		return nil, err
	}
	r, err := archive.OpenCompressed(local)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return parsePrimary(r)
}

func (idx *PackageIndex) readFilelists(ctx context.Context, suite, section, arch, href string) (map[string][]string, error) {
	local, err := idx.resolveMetadata(ctx, suite, section, arch, href)
	if err != nil {
		return nil, err
	}
	r, err := archive.OpenCompressed(local)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return parseFilelists(r)
}

// PackageForFile is not supported by the rpm-md backend.
func (idx *PackageIndex) PackageForFile(context.Context, string, string, string) (core.Package, error) {
	return nil, nil
}

// HasChanges fingerprints repomd.xml against the store; repomd.xml names
// every other metadata file by checksum, so it covers the whole triplet.
func (idx *PackageIndex) HasChanges(ctx context.Context, store core.DataStore, suite, section, arch string) (bool, error) {
	key := core.TripletKey(suite, section, arch)
	return idx.changes.Get(key, func() (bool, error) {
		local, err := idx.resolveRepomd(ctx, suite, section, arch)
		if err != nil {
			return true, nil
		}
		return core.FingerprintChanged(store, "rpmmd/"+key, local)
	})
}

// Release drops all cached package lists.
func (idx *PackageIndex) Release() {
	idx.cache.Release()
}
