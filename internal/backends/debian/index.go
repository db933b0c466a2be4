package debian

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	version "github.com/hashicorp/go-version"
	"github.com/rs/zerolog"

	"github.com/ximion/appstream-generator-sub004/internal/archive"
	"github.com/ximion/appstream-generator-sub004/internal/core"
	"github.com/ximion/appstream-generator-sub004/internal/download"
)

// indexCompressions is the preference order for compressed index files
// under dists/.
var indexCompressions = []string{".xz", ".gz"}

// PackageIndex enumerates Debian packages from dists/ Packages indices.
type PackageIndex struct {
	log     *zerolog.Logger
	res     *download.Resolver
	rootDir string
	tmpDir  string
	cache   *core.TripletCache
	changes *core.AnswerCache
}

var _ core.PackageIndex = (*PackageIndex)(nil)

// New creates a Debian package index rooted at rootDir (local mirror
// path or repository URL).
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
// With withLongDescs set, English long descriptions are merged in from
// the i18n Translation index; the two variants are cached separately.
func (idx *PackageIndex) PackagesFor(ctx context.Context, suite, section, arch string, withLongDescs bool) ([]core.Package, error) {
	key := core.TripletKey(suite, section, arch)
	if withLongDescs {
		key += "+i18n"
	}
	return idx.cache.Get(key, func() ([]core.Package, error) {
		return idx.loadTriplet(ctx, suite, section, arch, withLongDescs)
	})
}

// resolveCompressed fetches the first existing compression variant of an
// index file, trying xz before gz.
func (idx *PackageIndex) resolveCompressed(ctx context.Context, indexFile, cacheName string) (string, error) {
	var lastErr error
	for _, ext := range indexCompressions {
		local, err := idx.res.DownloadIfNecessary(ctx, idx.rootDir, idx.tmpDir, indexFile+ext, cacheName+ext)
		if err == nil {
			return local, nil
		}
		lastErr = err
		if !errors.Is(err, core.ErrNotFound) {
			break
		}
	}
	return "", lastErr
}

func (idx *PackageIndex) resolvePackagesIndex(ctx context.Context, suite, section, arch string) (string, error) {
	indexFile := path.Join("dists", suite, section, "binary-"+arch, "Packages")
	cacheName := fmt.Sprintf("Packages-%s-%s-%s", suite, section, arch)
	return idx.resolveCompressed(ctx, indexFile, cacheName)
}

func (idx *PackageIndex) loadTriplet(ctx context.Context, suite, section, arch string, withLongDescs bool) ([]core.Package, error) {
	local, err := idx.resolvePackagesIndex(ctx, suite, section, arch)
	if err != nil {
		return nil, fmt.Errorf("resolve Packages index for %s/%s/%s: %w", suite, section, arch, err)
	}

	r, err := archive.OpenCompressed(local)
	if err != nil {
		return nil, err
	}
	sections, err := ParseTagFile(r)
	r.Close()
	if err != nil {
		return nil, fmt.Errorf("parse Packages index: %w", err)
	}

	// Duplicate package names can appear when an index carries several
	// versions; the newest one wins.
	byName := make(map[string]*Package)
	var order []string
	for _, sec := range sections {
		pkg := newPackage(idx.rootDir, idx.tmpDir, idx.res, idx.log)
		pkg.name = sec["Package"]
		pkg.version = sec["Version"]
		pkg.arch = sec["Architecture"]
		pkg.maintainer = sec["Maintainer"]
		pkg.filename = sec["Filename"]
		if desc := sec["Description"]; desc != "" {
			summary, long := splitDescription(desc)
			pkg.summary["C"] = summary
			if rendered := renderDescriptionHTML(long); rendered != "" {
				pkg.desc["C"] = rendered
			}
		}
		if !core.IsValidPackage(pkg) {
			idx.log.Warn().Str("id", pkg.ID()).Msg("dropping invalid Packages stanza")
			continue
		}
		prev, seen := byName[pkg.name]
		if !seen {
			byName[pkg.name] = pkg
			order = append(order, pkg.name)
			continue
		}
		if compareVersions(pkg.version, prev.version) > 0 {
			byName[pkg.name] = pkg
		}
	}

	pkgs := make([]core.Package, 0, len(order))
	for _, name := range order {
		pkgs = append(pkgs, byName[name])
	}

	if withLongDescs {
		if err := idx.mergeTranslations(ctx, suite, section, sections, byName); err != nil {
			idx.log.Warn().Err(err).
				Str("suite", suite).Str("section", section).
				Msg("no usable Translation-en index, long descriptions stay untranslated")
		}
	}

	idx.log.Debug().
		Int("packages", len(pkgs)).
		Str("suite", suite).Str("section", section).Str("arch", arch).
		Msg("parsed Packages index")
	return pkgs, nil
}

// mergeTranslations loads the English i18n index and attaches translated
// descriptions to packages whose Description-md5 matches.
func (idx *PackageIndex) mergeTranslations(ctx context.Context, suite, section string, sections []TagSection, byName map[string]*Package) error {
	indexFile := path.Join("dists", suite, section, "i18n", "Translation-en")
	cacheName := fmt.Sprintf("Translation-en-%s-%s", suite, section)
	local, err := idx.resolveCompressed(ctx, indexFile, cacheName)
	if err != nil {
		return err
	}

	r, err := archive.OpenCompressed(local)
	if err != nil {
		return err
	}
	trSections, err := ParseTagFile(r)
	r.Close()
	if err != nil {
		return fmt.Errorf("parse Translation-en index: %w", err)
	}

	byMD5 := make(map[string]string, len(trSections))
	for _, sec := range trSections {
		if md5 := sec["Description-md5"]; md5 != "" {
			byMD5[md5] = sec["Description-en"]
		}
	}

	for _, sec := range sections {
		pkg, ok := byName[sec["Package"]]
		if !ok {
			continue
		}
		translated, ok := byMD5[sec["Description-md5"]]
		if !ok || translated == "" {
			continue
		}
		summary, long := splitDescription(translated)
		pkg.summary["en"] = summary
		if rendered := renderDescriptionHTML(long); rendered != "" {
			pkg.desc["en"] = rendered
		}
	}
	return nil
}

// compareVersions orders Debian version strings, falling back to a
// lexical comparison when a version does not parse (epochs and tilde
// suffixes are not go-version material).
func compareVersions(a, b string) int {
	va, errA := version.NewVersion(a)
	vb, errB := version.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return strings.Compare(a, b)
}

// PackageForFile builds a package from a local .deb file by reading its
// control stanza.
func (idx *PackageIndex) PackageForFile(_ context.Context, fname, _, _ string) (core.Package, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fname, err)
	}
	defer f.Close()

	var control []TagSection
	err = archive.WalkDebControl(f, func(name string, r io.Reader) error {
		if name != "control" {
			return nil
		}
		control, err = ParseTagFile(r)
		if err != nil {
			return err
		}
		return archive.ErrStopWalk
	})
	if err != nil {
		return nil, fmt.Errorf("read control member of %s: %w", fname, err)
	}
	if len(control) == 0 {
		return nil, fmt.Errorf("%s carries no control stanza", fname)
	}
	sec := control[0]

	pkg := newPackage(idx.rootDir, idx.tmpDir, idx.res, idx.log)
	pkg.localFile = fname
	pkg.name = sec["Package"]
	pkg.version = sec["Version"]
	pkg.arch = sec["Architecture"]
	pkg.maintainer = sec["Maintainer"]
	if desc := sec["Description"]; desc != "" {
		summary, long := splitDescription(desc)
		pkg.summary["C"] = summary
		if rendered := renderDescriptionHTML(long); rendered != "" {
			pkg.desc["C"] = rendered
		}
	}
	if !core.IsValidPackage(pkg) {
		return nil, fmt.Errorf("%s carries an incomplete control stanza", fname)
	}
	return pkg, nil
}

// HasChanges fingerprints the Packages index against the store; memoized
// per triplet.
func (idx *PackageIndex) HasChanges(ctx context.Context, store core.DataStore, suite, section, arch string) (bool, error) {
	key := core.TripletKey(suite, section, arch)
	return idx.changes.Get(key, func() (bool, error) {
		local, err := idx.resolvePackagesIndex(ctx, suite, section, arch)
		if err != nil {
			return true, nil
		}
		return core.FingerprintChanged(store, "debian/"+key, local)
	})
}

// Release drops all cached package lists.
func (idx *PackageIndex) Release() {
	idx.cache.Release()
}
