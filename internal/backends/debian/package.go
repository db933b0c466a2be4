// Package debian implements the Debian archive backend, reading package
// metadata from dists/ Packages indices and file data from pool/ .deb
// archives.
package debian

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ximion/appstream-generator-sub004/internal/archive"
	"github.com/ximion/appstream-generator-sub004/internal/core"
	"github.com/ximion/appstream-generator-sub004/internal/download"
)

// Package is one Debian binary package. It is backed either by a pool
// archive referenced from a Packages index, or by a local .deb file when
// built through PackageForFile.
type Package struct {
	log *zerolog.Logger
	res *download.Resolver

	rootDir string
	tmpDir  string

	name       string
	version    string
	arch       string
	maintainer string
	filename   string // pool path relative to rootDir
	localFile  string // direct .deb path, set for local packages

	desc    map[string]string
	summary map[string]string

	mu       sync.Mutex
	contents []string
	arc      *archive.Decompressor
	id       string
}

var _ core.Package = (*Package)(nil)

func newPackage(rootDir, tmpDir string, res *download.Resolver, log *zerolog.Logger) *Package {
	return &Package{
		log:     log,
		res:     res,
		rootDir: rootDir,
		tmpDir:  tmpDir,
		desc:    make(map[string]string),
		summary: make(map[string]string),
	}
}

func (p *Package) Name() string         { return p.name }
func (p *Package) Version() string      { return p.version }
func (p *Package) Architecture() string { return p.arch }
func (p *Package) Maintainer() string   { return p.maintainer }

func (p *Package) Description() map[string]string { return p.desc }
func (p *Package) Summary() map[string]string     { return p.summary }

// Contents lists the data.tar payload of the archive; the listing is
// cached after the first read.
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
	files, err := arc.ReadContents(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.contents = files
	p.mu.Unlock()
	return files, nil
}

// GetFileData reads one file from the data.tar payload, downloading and
// opening the archive on first use.
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
	if p.localFile != "" {
		if err := arc.Open(p.localFile); err != nil {
			return nil, err
		}
	} else {
		if p.filename == "" {
			return nil, fmt.Errorf("package %s has no Filename: %w", p.ID(), core.ErrNotFound)
		}
		cacheName := strings.ReplaceAll(p.filename, "/", "_")
		if err := arc.OpenCached(ctx, p.res, p.rootDir, p.tmpDir, p.filename, cacheName); err != nil {
			return nil, fmt.Errorf("open archive for %s: %w", p.ID(), err)
		}
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
