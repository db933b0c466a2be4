package ubuntu

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ximion/appstream-generator-sub004/internal/core"
	"github.com/ximion/appstream-generator-sub004/internal/helpers"
	"github.com/ximion/appstream-generator-sub004/internal/logging"
)

// recordingRunner wraps MockCommandRunner and records localedef calls.
type recordingRunner struct {
	helpers.MockCommandRunner

	mu    sync.Mutex
	calls [][]string
}

func newRecordingRunner(localedefExists bool) *recordingRunner {
	r := &recordingRunner{}
	r.CommandExistsFunc = func(string) bool { return localedefExists }
	r.RunCommandFunc = func(_ context.Context, name string, args ...string) (string, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, append([]string{name}, args...))
		return "", nil
	}
	return r
}

func (r *recordingRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newLangpackDummy() *core.DummyPackage {
	return &core.DummyPackage{
		PkgName:    "language-pack-de",
		PkgVersion: "1:24.04",
		PkgArch:    "all",
		Files: []string{
			"/usr/share/locale-langpack/de/LC_MESSAGES/gimp20.mo",
			"/var/lib/locales/supported.d/de",
			"/usr/share/doc/language-pack-de/copyright",
		},
		Data: map[string][]byte{
			"/usr/share/locale-langpack/de/LC_MESSAGES/gimp20.mo": []byte("mo-bytes"),
			"/var/lib/locales/supported.d/de":                     []byte("de_DE.UTF-8 UTF-8\nde_AT.UTF-8 UTF-8\n"),
			"/usr/share/doc/language-pack-de/copyright":           []byte("GPL"),
		},
	}
}

func newTestProvider(t *testing.T, runner helpers.CommandRunner) *LangpackProvider {
	t.Helper()
	log := logging.NewTestLogger(io.Discard)
	return NewLangpackProvider(afero.NewMemMapFs(), runner, "/work", 2, log)
}

func TestStripCharset(t *testing.T) {
	assert.Equal(t, "de_DE", stripCharset("de_DE.UTF-8"))
	assert.Equal(t, "de_DE", stripCharset("de_DE"))
	assert.Equal(t, "sr_RS@latin", stripCharset("sr_RS.UTF-8@latin"))
}

func TestExtractLangpacks(t *testing.T) {
	runner := newRecordingRunner(true)
	p := newTestProvider(t, runner)
	p.AddLanguagePacks(newLangpackDummy())

	require.NoError(t, p.ExtractLangpacks(context.Background()))

	mo, err := afero.ReadFile(p.fs, "/work/langpacks/usr/share/locale-langpack/de/LC_MESSAGES/gimp20.mo")
	require.NoError(t, err)
	assert.Equal(t, []byte("mo-bytes"), mo)

	// Files outside the langpack trees are not extracted.
	exists, _ := afero.Exists(p.fs, "/work/langpacks/usr/share/doc/language-pack-de/copyright")
	assert.False(t, exists)

	require.Len(t, runner.calls, 2)
	assert.Contains(t, runner.calls, []string{
		"localedef", "--no-archive", "-i", "de_DE", "-c", "-f", "UTF-8",
		filepath.Join("/work", "locale", "de_DE.UTF-8"),
	})

	// Idempotent: a second call reruns nothing.
	require.NoError(t, p.ExtractLangpacks(context.Background()))
	assert.Equal(t, 2, runner.callCount())
}

func TestExtractLangpacksWithoutLocaledef(t *testing.T) {
	runner := newRecordingRunner(false)
	p := newTestProvider(t, runner)
	p.AddLanguagePacks(newLangpackDummy())

	require.NoError(t, p.ExtractLangpacks(context.Background()))
	assert.Zero(t, runner.callCount(), "missing localedef skips compilation")
}

func TestAddLanguagePacksDeduplicates(t *testing.T) {
	p := newTestProvider(t, newRecordingRunner(true))
	assert.False(t, p.HasLangpacks())

	p.AddLanguagePacks(newLangpackDummy())
	p.AddLanguagePacks(newLangpackDummy())
	assert.True(t, p.HasLangpacks())
	assert.Len(t, p.langpacks, 1)

	p.Clear()
	assert.False(t, p.HasLangpacks())
}

func TestGetTranslationsRestoresEnvironment(t *testing.T) {
	t.Setenv("LANGUAGE", "nb_NO:nb:no")
	t.Setenv("LC_ALL", "C.UTF-8")
	os.Unsetenv("LC_MESSAGES")

	p := newTestProvider(t, newRecordingRunner(false))
	translations := p.GetTranslations(context.Background(), "gimp20", "Image Editor")
	assert.Empty(t, translations, "no catalogs extracted, nothing to translate")

	assert.Equal(t, "nb_NO:nb:no", os.Getenv("LANGUAGE"))
	assert.Equal(t, "C.UTF-8", os.Getenv("LC_ALL"))
	_, set := os.LookupEnv("LC_MESSAGES")
	assert.False(t, set, "unset variables stay unset")
}
