package ubuntu

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/leonelquinteros/gotext"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/ximion/appstream-generator-sub004/internal/core"
	"github.com/ximion/appstream-generator-sub004/internal/helpers"
)

// translationMu serializes all translation lookups in the process. The
// lookup protocol mutates process-wide locale environment variables, so
// two concurrent lookups would corrupt each other's environment.
var translationMu sync.Mutex

// translationEnvVars are the variables snapshotted, cleared and restored
// around a translation lookup.
var translationEnvVars = []string{"LC_ALL", "LANG", "LANGUAGE", "LC_MESSAGES"}

// localeEntry is one line of a supported.d file: a locale name and its
// charset.
type localeEntry struct {
	name    string
	charset string
}

// LangpackProvider extracts Ubuntu language-pack packages into a work
// directory and answers gettext lookups against the extracted .mo
// catalogs. Packages are registered while an index is parsed; extraction
// happens lazily on the first lookup.
type LangpackProvider struct {
	log    *zerolog.Logger
	fs     afero.Fs
	runner helpers.CommandRunner

	workDir string
	workers int

	mu        sync.Mutex
	langpacks map[string]core.Package
	locales   []localeEntry
	extracted bool
}

// NewLangpackProvider creates a provider extracting under workDir.
func NewLangpackProvider(fs afero.Fs, runner helpers.CommandRunner, workDir string, workers int, log *zerolog.Logger) *LangpackProvider {
	if workers < 1 {
		workers = 1
	}
	return &LangpackProvider{
		log:       log,
		fs:        fs,
		runner:    runner,
		workDir:   workDir,
		workers:   workers,
		langpacks: make(map[string]core.Package),
	}
}

func (p *LangpackProvider) langpackDir() string { return filepath.Join(p.workDir, "langpacks") }
func (p *LangpackProvider) localeDir() string   { return filepath.Join(p.workDir, "locale") }

// AddLanguagePacks registers language-pack packages for later
// extraction; duplicates by name are collapsed.
func (p *LangpackProvider) AddLanguagePacks(pkgs ...core.Package) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pkg := range pkgs {
		p.langpacks[pkg.Name()] = pkg
	}
}

// HasLangpacks reports whether any language packs are registered.
func (p *LangpackProvider) HasLangpacks() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.langpacks) > 0
}

// Clear drops all registered packs and resets the extraction state so a
// later suite run starts fresh.
func (p *LangpackProvider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.langpacks = make(map[string]core.Package)
	p.locales = nil
	p.extracted = false
}

// ExtractLangpacks unpacks the registered language packs into the work
// directory and compiles the locales they declare. It is idempotent: an
// already-populated extraction directory is reused as is.
func (p *LangpackProvider) ExtractLangpacks(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.extracted {
		return nil
	}

	root := p.langpackDir()
	if exists, _ := afero.DirExists(p.fs, root); !exists {
		names := make([]string, 0, len(p.langpacks))
		for name := range p.langpacks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := p.extractOne(ctx, p.langpacks[name], root); err != nil {
				return fmt.Errorf("extract language pack %s: %w", name, err)
			}
		}
	}

	locales, err := p.scanSupportedLocales(root)
	if err != nil {
		return err
	}
	p.locales = locales

	if err := p.compileLocales(ctx); err != nil {
		return err
	}

	p.extracted = true
	p.log.Debug().Int("locales", len(p.locales)).Msg("language packs ready")
	return nil
}

func (p *LangpackProvider) extractOne(ctx context.Context, pkg core.Package, root string) error {
	defer pkg.CleanupTemp()

	files, err := pkg.Contents(ctx)
	if err != nil {
		return err
	}
	for _, f := range files {
		if !strings.HasPrefix(f, "/usr/share/locale-langpack/") &&
			!strings.HasPrefix(f, "/var/lib/locales/") {
			continue
		}
		data, err := pkg.GetFileData(ctx, f)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				p.log.Debug().Str("file", f).Str("pkg", pkg.Name()).Msg("listed file missing from archive")
				continue
			}
			return err
		}
		dest := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(f, "/")))
		if err := p.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := afero.WriteFile(p.fs, dest, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// scanSupportedLocales reads var/lib/locales/supported.d/* from the
// extraction tree; each line names a locale and its charset.
func (p *LangpackProvider) scanSupportedLocales(root string) ([]localeEntry, error) {
	dir := filepath.Join(root, "var", "lib", "locales", "supported.d")
	infos, err := afero.ReadDir(p.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	seen := make(map[string]bool)
	var locales []localeEntry
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		data, err := afero.ReadFile(p.fs, filepath.Join(dir, info.Name()))
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(string(data), "\n") {
			fields := strings.Fields(line)
			if len(fields) != 2 || seen[fields[0]] {
				continue
			}
			seen[fields[0]] = true
			locales = append(locales, localeEntry{name: fields[0], charset: fields[1]})
		}
	}
	sort.Slice(locales, func(i, j int) bool { return locales[i].name < locales[j].name })
	return locales, nil
}

// compileLocales builds the declared locales with localedef, bounded by
// the worker count. A missing localedef binary skips compilation; a
// single failing locale is logged and ignored.
func (p *LangpackProvider) compileLocales(ctx context.Context) error {
	if len(p.locales) == 0 {
		return nil
	}
	if !p.runner.CommandExists("localedef") {
		p.log.Warn().Msg("localedef not found, skipping locale compilation")
		return nil
	}
	if err := p.fs.MkdirAll(p.localeDir(), 0o755); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, le := range p.locales {
		g.Go(func() error {
			out := filepath.Join(p.localeDir(), le.name)
			_, err := p.runner.RunCommand(gctx, "localedef",
				"--no-archive", "-i", stripCharset(le.name), "-c", "-f", le.charset, out)
			if err != nil {
				p.log.Debug().Err(err).Str("locale", le.name).Msg("localedef failed")
			}
			return nil
		})
	}
	return g.Wait()
}

// GetTranslations looks text up in every extracted locale for the given
// gettext domain. The result maps locale names (charset stripped) to
// translations that differ from the input.
func (p *LangpackProvider) GetTranslations(ctx context.Context, domain, text string) map[string]string {
	if err := p.ExtractLangpacks(ctx); err != nil {
		p.log.Warn().Err(err).Msg("language pack extraction failed, no translations")
		return nil
	}

	translationMu.Lock()
	defer translationMu.Unlock()

	p.mu.Lock()
	locales := append([]localeEntry(nil), p.locales...)
	p.mu.Unlock()

	// Locale environment leakage would bias the gettext catalog lookup
	// below and any localized subprocess: clear it while we work.
	saved := snapshotLocaleEnv()
	defer restoreLocaleEnv(saved)

	base := filepath.Join(p.langpackDir(), "usr", "share", "locale-langpack")
	translations := make(map[string]string)
	for _, le := range locales {
		loc := stripCharset(le.name)
		l := gotext.NewLocale(base, loc)
		l.AddDomain(domain)
		tr := l.GetD(domain, text)
		if tr != "" && tr != text {
			translations[loc] = tr
		}
	}
	return translations
}

// stripCharset removes the ".charset" part of a locale name while
// keeping any @modifier: "sr_RS.UTF-8@latin" becomes "sr_RS@latin".
func stripCharset(name string) string {
	dot := strings.Index(name, ".")
	if dot < 0 {
		return name
	}
	if at := strings.Index(name[dot:], "@"); at >= 0 {
		return name[:dot] + name[dot+at:]
	}
	return name[:dot]
}

// snapshotLocaleEnv records and unsets the locale variables; a nil value
// marks a variable that was not set at all.
func snapshotLocaleEnv() map[string]*string {
	saved := make(map[string]*string, len(translationEnvVars))
	for _, key := range translationEnvVars {
		if value, ok := os.LookupEnv(key); ok {
			v := value
			saved[key] = &v
		} else {
			saved[key] = nil
		}
		os.Unsetenv(key)
	}
	return saved
}

func restoreLocaleEnv(saved map[string]*string) {
	for key, value := range saved {
		if value == nil {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, *value)
		}
	}
}
