// Package rpmmd implements the rpm-md (yum/dnf repodata) repository
// backend used by Fedora-style distributions.
package rpmmd

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ximion/appstream-generator-sub004/internal/archive"
	"github.com/ximion/appstream-generator-sub004/internal/core"
	"github.com/ximion/appstream-generator-sub004/internal/download"
)

// Package is one RPM package described by primary.xml, backed by the
// archive named in its location element.
type Package struct {
	log *zerolog.Logger
	res *download.Resolver

	rootDir  string
	repoPath string // suite/section/arch/os, relative to rootDir
	tmpDir   string

	name       string
	version    string
	arch       string
	maintainer string
	location   string
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

// Contents returns the file list from the repository's filelists
// metadata; no archive access is needed.
func (p *Package) Contents(context.Context) ([]string, error) {
	return p.contents, nil
}

// GetFileData reads one file out of the RPM payload, downloading and
// opening the package on first use.
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
	if p.location == "" {
		return nil, fmt.Errorf("package %s has no location: %w", p.ID(), core.ErrNotFound)
	}
	arc := archive.NewDecompressor()
	cacheName := strings.ReplaceAll(p.location, "/", "_")
	err := arc.OpenCached(ctx, p.res, p.rootDir, p.tmpDir, path.Join(p.repoPath, p.location), cacheName)
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
