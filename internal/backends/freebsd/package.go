// Package freebsd implements the FreeBSD pkg(8) repository backend. A
// package is either physical (an archive referenced by the repository
// catalog) or staged (a ports build workdir with an unpacked stage tree
// next to a single built .pkg file).
package freebsd

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ximion/appstream-generator-sub004/internal/archive"
	"github.com/ximion/appstream-generator-sub004/internal/core"
	"github.com/ximion/appstream-generator-sub004/internal/download"
)

// manifest is the subset of a pkg(8) manifest this backend consumes,
// whether it comes from the repository catalog or a +COMPACT_MANIFEST.
type manifest struct {
	Name       string `json:"name"`
	Origin     string `json:"origin"`
	Version    string `json:"version"`
	Arch       string `json:"arch"`
	Maintainer string `json:"maintainer"`
	Comment    string `json:"comment"`
	Desc       string `json:"desc"`
	RepoPath   string `json:"repopath"`
	Path       string `json:"path"`
}

func (m *manifest) archivePath() string {
	if m.RepoPath != "" {
		return m.RepoPath
	}
	return m.Path
}

// Package is one FreeBSD package in either physical or staged form.
type Package struct {
	log *zerolog.Logger
	fs  afero.Fs
	res *download.Resolver

	rootDir string // repository root for physical packages
	tmpDir  string
	m       manifest

	staged   bool
	stageDir string
	pkgFile  string // local .pkg path for staged packages

	desc    map[string]string
	summary map[string]string

	mu       sync.Mutex
	contents []string
	arc      *archive.Decompressor
	id       string
}

var _ core.Package = (*Package)(nil)

// newPhysical builds a package from one catalog manifest; the archive
// lives at rootDir/<repopath>.
func newPhysical(rootDir, tmpDir string, m manifest, res *download.Resolver, log *zerolog.Logger) *Package {
	p := &Package{
		log:     log,
		fs:      afero.NewOsFs(),
		res:     res,
		rootDir: rootDir,
		tmpDir:  tmpDir,
		m:       m,
	}
	p.initText()
	return p
}

// NewStaged builds a package from a ports build work directory holding an
// unpacked stage/ tree and exactly one built archive under pkg/. Zero or
// more than one archive, or a missing stage tree, are configuration
// errors fatal to the call.
func NewStaged(ctx context.Context, fs afero.Fs, workDir string, log *zerolog.Logger) (*Package, error) {
	matches, err := afero.Glob(fs, filepath.Join(workDir, "pkg", "*.pkg"))
	if err != nil {
		return nil, fmt.Errorf("scan %s/pkg: %w", workDir, err)
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no .pkg file found under %s/pkg", workDir)
	case 1:
		// Exactly one built package, as expected.
	default:
		sort.Strings(matches)
		return nil, fmt.Errorf("found %d .pkg files under %s/pkg, expected exactly one: %v",
			len(matches), workDir, matches)
	}

	stageDir := filepath.Join(workDir, "stage")
	if ok, _ := afero.DirExists(fs, stageDir); !ok {
		return nil, fmt.Errorf("stage directory %s does not exist", stageDir)
	}

	p := &Package{
		log:      log,
		fs:       fs,
		staged:   true,
		stageDir: stageDir,
		pkgFile:  matches[0],
	}

	data, err := archive.ReadMemberData(ctx, p.pkgFile, "+COMPACT_MANIFEST")
	if err != nil {
		return nil, fmt.Errorf("read compact manifest from %s: %w", p.pkgFile, err)
	}
	// Unmarshal into a struct via an object check first: a manifest that
	// is not a JSON object is a fatal parse error, not a partial record.
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("compact manifest of %s is not a JSON object: %w", p.pkgFile, err)
	}
	if err := json.Unmarshal(data, &p.m); err != nil {
		return nil, fmt.Errorf("parse compact manifest of %s: %w", p.pkgFile, err)
	}
	p.initText()
	return p, nil
}

func (p *Package) initText() {
	p.desc = make(map[string]string)
	p.summary = make(map[string]string)
	if p.m.Desc != "" {
		p.desc["C"] = "<p>" + html.EscapeString(strings.TrimSpace(p.m.Desc)) + "</p>"
	}
	if p.m.Comment != "" {
		p.summary["C"] = p.m.Comment
	}
}

func (p *Package) Name() string       { return p.m.Name }
func (p *Package) Version() string    { return p.m.Version }
func (p *Package) Maintainer() string { return p.m.Maintainer }

// Architecture strips the "FreeBSD:14:" ABI prefix the catalog uses.
func (p *Package) Architecture() string {
	if i := strings.LastIndex(p.m.Arch, ":"); i >= 0 {
		return p.m.Arch[i+1:]
	}
	return p.m.Arch
}

func (p *Package) Description() map[string]string { return p.desc }
func (p *Package) Summary() map[string]string     { return p.summary }

// Contents walks the stage tree for staged packages, because archive
// member paths describe the post-install layout, not the staged
// filesystem. Physical packages list the opened archive.
func (p *Package) Contents(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	cached := p.contents
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	var files []string
	if p.staged {
		err := afero.Walk(p.fs, p.stageDir, func(fpath string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(p.stageDir, fpath)
			if err != nil {
				return err
			}
			files = append(files, "/"+filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk stage tree %s: %w", p.stageDir, err)
		}
	} else {
		arc, err := p.openArchive(ctx)
		if err != nil {
			return nil, err
		}
		all, err := arc.ReadContents(ctx)
		if err != nil {
			return nil, err
		}
		for _, f := range all {
			if strings.HasPrefix(path.Base(f), "+") {
				continue
			}
			files = append(files, f)
		}
	}

	p.mu.Lock()
	p.contents = files
	p.mu.Unlock()
	return files, nil
}

// GetFileData reads from the stage tree for staged packages and from the
// archive for physical ones.
func (p *Package) GetFileData(ctx context.Context, fname string) ([]byte, error) {
	if p.staged {
		local := filepath.Join(p.stageDir, strings.TrimPrefix(fname, "/"))
		data, err := afero.ReadFile(p.fs, local)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("staged file %q: %w", fname, core.ErrNotFound)
			}
			return nil, err
		}
		return data, nil
	}

	arc, err := p.openArchive(ctx)
	if err != nil {
		return nil, err
	}
	return arc.ReadData(ctx, fname)
}

func (p *Package) openArchive(ctx context.Context) (*archive.Decompressor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.arc != nil && p.arc.IsOpen() {
		return p.arc, nil
	}
	arc := archive.NewDecompressor()
	if p.staged {
		if err := arc.Open(p.pkgFile); err != nil {
			return nil, err
		}
	} else {
		repoPath := p.m.archivePath()
		if repoPath == "" {
			return nil, fmt.Errorf("package %s has no repopath: %w", p.ID(), core.ErrNotFound)
		}
		cacheName := strings.ReplaceAll(repoPath, "/", "_")
		if err := arc.OpenCached(ctx, p.res, p.rootDir, p.tmpDir, repoPath, cacheName); err != nil {
			return nil, fmt.Errorf("open archive for %s: %w", p.ID(), err)
		}
	}
	p.arc = arc
	return arc, nil
}

func (p *Package) Kind() core.PackageKind { return core.PackageKindPhysical }

func (p *Package) ID() string {
	if p.id == "" {
		p.id = core.MakePackageID(p.m.Name, p.m.Version, p.Architecture())
	}
	return p.id
}

func (p *Package) String() string { return p.ID() }

func (p *Package) Finish() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.arc != nil {
		p.arc.CleanupCached()
		p.arc.Close()
		p.arc = nil
	}
	return nil
}

func (p *Package) CleanupTemp() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.arc != nil {
		p.arc.CleanupCached()
		p.arc.Close()
		p.arc = nil
	}
}
