// Package alpine implements the Alpine Linux repository backend, parsing
// the APKINDEX block format and reading .apk archives on demand.
package alpine

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ximion/appstream-generator-sub004/internal/archive"
	"github.com/ximion/appstream-generator-sub004/internal/core"
	"github.com/ximion/appstream-generator-sub004/internal/download"
)

// Package is one Alpine package backed by an .apk archive.
type Package struct {
	log *zerolog.Logger
	res *download.Resolver

	rootDir  string
	repoPath string // suite/section/arch, relative to rootDir
	tmpDir   string

	name       string
	version    string
	arch       string
	maintainer string
	desc       map[string]string
	summary    map[string]string

	mu       sync.Mutex
	contents []string
	arc      *archive.Decompressor
	id       string
}

var _ core.Package = (*Package)(nil)

func newPackage(rootDir, repoPath, tmpDir string, res *download.Resolver, log *zerolog.Logger) *Package {
	return &Package{
		log:      log,
		res:      res,
		rootDir:  rootDir,
		repoPath: repoPath,
		tmpDir:   tmpDir,
		desc:     make(map[string]string),
		summary:  make(map[string]string),
	}
}

func (p *Package) Name() string         { return p.name }
func (p *Package) Version() string      { return p.version }
func (p *Package) Architecture() string { return p.arch }
func (p *Package) Maintainer() string   { return p.maintainer }

func (p *Package) Description() map[string]string { return p.desc }
func (p *Package) Summary() map[string]string     { return p.summary }

func (p *Package) archiveFileName() string {
	return fmt.Sprintf("%s-%s.apk", p.name, p.version)
}

// Contents lists the files in the .apk archive, skipping the .SIGN and
// .PKGINFO control members.
func (p *Package) Contents(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	cached := p.contents
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	arc, err := p.openArchive(ctx)
	if err != nil {
		return nil, err
	}
	all, err := arc.ReadContents(ctx)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(all))
	for _, f := range all {
		if base := path.Base(f); base != "" && base[0] == '.' {
			continue
		}
		files = append(files, f)
	}
	p.mu.Lock()
	p.contents = files
	p.mu.Unlock()
	return files, nil
}

// GetFileData reads one file out of the .apk archive.
func (p *Package) GetFileData(ctx context.Context, fname string) ([]byte, error) {
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
	fname := p.archiveFileName()
	err := arc.OpenCached(ctx, p.res, p.rootDir, p.tmpDir, path.Join(p.repoPath, fname), fname)
	if err != nil {
		return nil, fmt.Errorf("open archive for %s: %w", p.ID(), err)
	}
	p.arc = arc
	return arc, nil
}

func (p *Package) Kind() core.PackageKind { return core.PackageKindPhysical }

func (p *Package) ID() string {
	if p.id == "" {
		p.id = core.MakePackageID(p.name, p.version, p.arch)
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
