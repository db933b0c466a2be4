// Package ubuntu implements the Ubuntu backend: the Debian archive
// layout plus desktop-entry translations served from language-pack
// packages.
package ubuntu

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ximion/appstream-generator-sub004/internal/core"
	"github.com/ximion/appstream-generator-sub004/internal/desktop"
)

// Package wraps a Debian package with langpack-backed desktop-entry
// translation.
type Package struct {
	core.Package

	log      *zerolog.Logger
	provider *LangpackProvider
}

var (
	_ core.Package           = (*Package)(nil)
	_ core.DesktopTranslator = (*Package)(nil)
)

func wrap(pkg core.Package, provider *LangpackProvider, log *zerolog.Logger) *Package {
	return &Package{Package: pkg, log: log, provider: provider}
}

// HasDesktopFileTranslations reports whether any language packs were
// seen in the suite this package came from.
func (p *Package) HasDesktopFileTranslations() bool {
	return p.provider.HasLangpacks()
}

// GetDesktopFileTranslations translates text through the language packs,
// using the gettext domain declared by the desktop entry. Entries
// without a domain have nothing to look up.
func (p *Package) GetDesktopFileTranslations(ctx context.Context, entry *desktop.Entry, text string) map[string]string {
	domain := entry.GettextDomain()
	if domain == "" {
		return nil
	}
	return p.provider.GetTranslations(ctx, domain, text)
}
