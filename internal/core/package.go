// Package core defines the backend-independent contracts of the generator:
// the Package and PackageIndex abstractions every distribution backend
// implements, the external-collaborator interfaces, and the shared caching
// primitives.
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/ximion/appstream-generator-sub004/internal/desktop"
)

// ErrNotFound marks a missing archive member, file or record. Callers
// match it with errors.Is to tell "absent" apart from real I/O failures.
var ErrNotFound = errors.New("not found")

// PackageKind distinguishes real archives from synthetic entries.
type PackageKind int

const (
	// PackageKindPhysical is a package backed by a real archive file.
	PackageKindPhysical PackageKind = iota
	// PackageKindFake is a synthetic entry used internally, e.g. to
	// carry metadata that has no owning archive.
	PackageKindFake
	// PackageKindUnknown is for entries whose origin could not be
	// determined.
	PackageKindUnknown
)

func (k PackageKind) String() string {
	switch k {
	case PackageKindPhysical:
		return "physical"
	case PackageKindFake:
		return "fake"
	default:
		return "unknown"
	}
}

// Package is one package of a distribution repository. Implementations
// are produced by their backend's PackageIndex while parsing an index.
//
// Contents and GetFileData are lazy: the first call may download the
// package archive and open a decompression handle, which is then reused
// until Finish releases it. A Package is owned by a single goroutine at a
// time; instances are not shared across workers.
type Package interface {
	fmt.Stringer

	// Name returns the package name. Required for validity.
	Name() string
	// Version returns the package version. Required for validity.
	Version() string
	// Architecture returns the package architecture. Required for validity.
	Architecture() string
	// Maintainer returns the package maintainer, possibly empty.
	Maintainer() string

	// Description returns locale → description markup. An absent locale
	// means no translation is available.
	Description() map[string]string
	// Summary returns locale → one-line summary.
	Summary() map[string]string

	// Contents returns the absolute paths of all files in the package.
	// The result is computed once and cached for the object's lifetime.
	// Backends without a file listing return an empty slice.
	Contents(ctx context.Context) ([]string, error)

	// GetFileData returns the raw bytes of one file inside the package
	// archive. A missing path yields an error matching ErrNotFound.
	GetFileData(ctx context.Context, path string) ([]byte, error)

	// Kind reports whether this is a real or synthetic package.
	Kind() PackageKind

	// ID returns the unique "name/version/arch" identifier.
	ID() string

	// Finish releases the archive handle and any locally cached download.
	// It is idempotent.
	Finish() error

	// CleanupTemp reclaims temporary disk space without invalidating the
	// package; a later Contents/GetFileData call may reopen resources.
	CleanupTemp()
}

// MakePackageID builds the canonical "name/version/arch" identifier.
func MakePackageID(name, version, arch string) string {
	return name + "/" + version + "/" + arch
}

// IsValidPackage reports whether the package carries the three required
// identity fields. Invalid packages are dropped by their index with a
// warning.
func IsValidPackage(p Package) bool {
	return p.Name() != "" && p.Version() != "" && p.Architecture() != ""
}

// DesktopTranslator is an optional capability of Package implementations
// that can translate desktop-entry strings through distribution language
// packs. Consumers probe for it with a type assertion.
type DesktopTranslator interface {
	// HasDesktopFileTranslations reports whether translations may be
	// available at all for this package.
	HasDesktopFileTranslations() bool

	// GetDesktopFileTranslations looks up translations of text for the
	// gettext domain named by the desktop entry. The result maps locale
	// names to translated strings; locales where the lookup returned the
	// input unchanged are omitted.
	GetDesktopFileTranslations(ctx context.Context, entry *desktop.Entry, text string) map[string]string
}
