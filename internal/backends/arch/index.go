package arch

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ximion/appstream-generator-sub004/internal/archive"
	"github.com/ximion/appstream-generator-sub004/internal/core"
	"github.com/ximion/appstream-generator-sub004/internal/download"
)

// PackageIndex enumerates Arch Linux packages from the per-repository
// .files database tarball.
type PackageIndex struct {
	log     *zerolog.Logger
	res     *download.Resolver
	rootDir string
	tmpDir  string
	cache   *core.TripletCache
}

var _ core.PackageIndex = (*PackageIndex)(nil)

// New creates an Arch Linux package index rooted at rootDir (local path
// or mirror URL).
func New(rootDir, tmpDir string, res *download.Resolver, log *zerolog.Logger) *PackageIndex {
	return &PackageIndex{
		log:     log,
		res:     res,
		rootDir: rootDir,
		tmpDir:  tmpDir,
		cache:   core.NewTripletCache(),
	}
}

// PackagesFor returns the packages of one (suite, section, arch) triplet,
// parsing the files database on first request.
func (idx *PackageIndex) PackagesFor(ctx context.Context, suite, section, arch string, _ bool) ([]core.Package, error) {
	return idx.cache.Get(core.TripletKey(suite, section, arch), func() ([]core.Package, error) {
		return idx.loadTriplet(ctx, suite, section, arch)
	})
}

func (idx *PackageIndex) loadTriplet(ctx context.Context, suite, section, arch string) ([]core.Package, error) {
	repoPath := path.Join(suite, section, "os", arch)
	indexFile := path.Join(repoPath, section+".files.tar.gz")
	cacheName := fmt.Sprintf("%s-%s-%s.files.tar.gz", suite, section, arch)

	local, err := idx.res.DownloadIfNecessary(ctx, idx.rootDir, idx.tmpDir, indexFile, cacheName)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			idx.log.Warn().
				Str("index", indexFile).
				Str("suite", suite).Str("section", section).Str("arch", arch).
				Msg("files database does not exist, no packages for this triplet")
			return []core.Package{}, nil
		}
		return nil, err
	}

	d := archive.NewDecompressor()
	if err := d.Open(local); err != nil {
		return nil, err
	}
	defer d.Close()

	// desc and files are two physically separate members tied together
	// by their parent directory inside the tarball.
	byDir := make(map[string]*Package)
	order := make([]string, 0, 64)

	err = d.Walk(ctx, func(name string, r io.Reader) error {
		base := path.Base(name)
		if base != "desc" && base != "files" {
			return nil
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}

		dirKey := path.Dir(name)
		pkg := byDir[dirKey]
		if pkg == nil {
			pkg = newPackage(idx.rootDir, repoPath, idx.tmpDir, idx.res, idx.log)
			byDir[dirKey] = pkg
			order = append(order, dirKey)
		}

		lf := NewListFile()
		lf.LoadData(data)

		if base == "desc" {
			pkg.name = lf.Entry("NAME")
			pkg.version = lf.Entry("VERSION")
			pkg.arch = lf.Entry("ARCH")
			pkg.maintainer = lf.Entry("PACKAGER")
			pkg.filename = lf.Entry("FILENAME")
			if desc := lf.Entry("DESC"); desc != "" {
				pkg.desc["C"] = "<p>" + html.EscapeString(desc) + "</p>"
				pkg.summary["C"] = desc
			}
		} else {
			pkg.contents = parseFilesList(lf.Entry("FILES"))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read files database %s: %w", local, err)
	}

	pkgs := make([]core.Package, 0, len(order))
	for _, dirKey := range order {
		pkg := byDir[dirKey]
		if !core.IsValidPackage(pkg) {
			idx.log.Warn().
				Str("entry", dirKey).
				Str("id", pkg.ID()).
				Msg("dropping invalid package from files database")
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	idx.log.Debug().
		Int("packages", len(pkgs)).
		Str("suite", suite).Str("section", section).Str("arch", arch).
		Msg("parsed Arch Linux files database")
	return pkgs, nil
}

func parseFilesList(value string) []string {
	lines := strings.Split(value, "\n")
	files := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasSuffix(line, "/") {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			line = "/" + line
		}
		files = append(files, line)
	}
	return files
}

// PackageForFile is not supported by the Arch Linux backend.
func (idx *PackageIndex) PackageForFile(context.Context, string, string, string) (core.Package, error) {
	return nil, nil
}

// HasChanges unconditionally reports changes: the pacman database carries
// no per-slice fingerprint this backend compares yet, so triplets are
// always reprocessed.
func (idx *PackageIndex) HasChanges(context.Context, core.DataStore, string, string, string) (bool, error) {
	return true, nil
}

// Release drops all cached package lists.
func (idx *PackageIndex) Release() {
	idx.cache.Release()
}
