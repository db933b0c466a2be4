package core

import (
	"context"
	"fmt"
)

// DummyPackage is a synthetic Package used by tests and by backends that
// need to inject metadata-only entries. All fields are settable; file
// data is served from the in-memory Data map.
type DummyPackage struct {
	PkgName       string
	PkgVersion    string
	PkgArch       string
	PkgMaintainer string
	Desc          map[string]string
	Summ          map[string]string
	Files         []string
	Data          map[string][]byte
	PkgKind       PackageKind

	id string
}

var _ Package = (*DummyPackage)(nil)

func (p *DummyPackage) Name() string         { return p.PkgName }
func (p *DummyPackage) Version() string      { return p.PkgVersion }
func (p *DummyPackage) Architecture() string { return p.PkgArch }
func (p *DummyPackage) Maintainer() string   { return p.PkgMaintainer }

func (p *DummyPackage) Description() map[string]string { return p.Desc }
func (p *DummyPackage) Summary() map[string]string     { return p.Summ }

func (p *DummyPackage) Contents(context.Context) ([]string, error) {
	return p.Files, nil
}

func (p *DummyPackage) GetFileData(_ context.Context, path string) ([]byte, error) {
	if data, ok := p.Data[path]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("file %q: %w", path, ErrNotFound)
}

func (p *DummyPackage) Kind() PackageKind { return p.PkgKind }

func (p *DummyPackage) ID() string {
	if p.id == "" {
		p.id = MakePackageID(p.PkgName, p.PkgVersion, p.PkgArch)
	}
	return p.id
}

func (p *DummyPackage) String() string { return p.ID() }

func (p *DummyPackage) Finish() error { return nil }

func (p *DummyPackage) CleanupTemp() {}
