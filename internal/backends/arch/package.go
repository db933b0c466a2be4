// Package arch implements the Arch Linux repository backend. Package
// metadata comes from the repo's .files database, a tarball holding one
// desc and one files member per package.
package arch

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

// Package is one Arch Linux package, backed by a .pkg.tar archive that is
// downloaded and opened on first file access.
type Package struct {
	log *zerolog.Logger
	res *download.Resolver

	rootDir  string
	repoPath string // suite/section/os/arch, relative to rootDir
	tmpDir   string

	name       string
	version    string
	arch       string
	maintainer string
	filename   string
	desc       map[string]string
	summary    map[string]string
	contents   []string

	mu  sync.Mutex
	arc *archive.Decompressor
	id  string
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

// Contents returns the file list from the repo's files database; no
// archive access is needed.
func (p *Package) Contents(context.Context) ([]string, error) {
	return p.contents, nil
}

// GetFileData reads one file out of the package archive, downloading and
// opening it on first use.
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
	if p.filename == "" {
		return nil, fmt.Errorf("package %s has no archive filename: %w", p.ID(), core.ErrNotFound)
	}
	arc := archive.NewDecompressor()
	err := arc.OpenCached(ctx, p.res, p.rootDir, p.tmpDir, path.Join(p.repoPath, p.filename), p.filename)
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

// Finish releases the archive handle and the locally cached download.
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

// CleanupTemp reclaims the cached download; the package can be reopened.
func (p *Package) CleanupTemp() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.arc != nil {
		p.arc.CleanupCached()
		p.arc.Close()
		p.arc = nil
	}
}
