// Package archive implements lazy, random-access reads of individual
// member files out of distribution package archives without unpacking
// them. One Decompressor is bound to one archive file; every backend
// funnels its file-data reads through this type.
//
// Supported containers: tar with gzip/xz/zstd/bzip2 compression (Alpine
// .apk, Arch .pkg.tar.zst and .files.tar.gz, FreeBSD .pkg), Debian .deb
// (ar wrapping data.tar.*) and RPM (cpio payload).
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/blakesmith/ar"
	"github.com/mholt/archives"
	"github.com/sassoftware/go-rpmutils"

	"github.com/ximion/appstream-generator-sub004/internal/core"
	"github.com/ximion/appstream-generator-sub004/internal/download"
)

// ErrStopWalk stops a Walk early without reporting an error.
var ErrStopWalk = errors.New("stop walk")

type archiveKind int

const (
	kindTar archiveKind = iota
	kindDeb
	kindRpm
)

// Decompressor reads single members out of one archive file. It is safe
// for use by the single goroutine owning its Package; the internal mutex
// only guards against accidental concurrent reuse.
type Decompressor struct {
	mu        sync.Mutex
	localPath string
	cachedDl  bool // localPath is a downloaded copy we own
	kind      archiveKind
	opened    bool
	optimize  bool

	contents []string
	members  map[string][]byte
	scanned  bool // members holds the complete archive
}

// NewDecompressor creates an unbound decompressor.
func NewDecompressor() *Decompressor {
	return &Decompressor{members: make(map[string][]byte)}
}

// Open binds the decompressor to a local archive file.
func (d *Decompressor) Open(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("archive %q: %w", path, core.ErrNotFound)
	}
	d.bind(path, false)
	return nil
}

// OpenCached binds the decompressor to rootPath/fileName, resolving the
// source through res first: a remote root is fetched once into
// tmpDir/cacheFileName and all reads use that local copy. Repeated reads
// against a fetched copy are optimized by retaining scanned members, so
// no second full pass over the archive is needed.
func (d *Decompressor) OpenCached(ctx context.Context, res *download.Resolver, rootPath, tmpDir, fileName, cacheFileName string) error {
	local, err := res.DownloadIfNecessary(ctx, rootPath, tmpDir, fileName, cacheFileName)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bind(local, download.IsRemote(rootPath))
	return nil
}

func (d *Decompressor) bind(local string, cached bool) {
	d.localPath = local
	d.cachedDl = cached
	d.optimize = cached
	d.opened = true
	d.scanned = false
	d.contents = nil
	d.members = make(map[string][]byte)

	switch {
	case strings.HasSuffix(local, ".deb") || strings.HasSuffix(local, ".udeb"):
		d.kind = kindDeb
	case strings.HasSuffix(local, ".rpm"):
		d.kind = kindRpm
	default:
		d.kind = kindTar
	}
}

// IsOpen reports whether the decompressor is bound to an archive.
func (d *Decompressor) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// Close unbinds the archive and drops all cached member data. The
// decompressor may be reopened afterwards.
func (d *Decompressor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = false
	d.contents = nil
	d.members = make(map[string][]byte)
	d.scanned = false
}

// CleanupCached removes the downloaded local copy, if any. The
// decompressor stays bound; a later read fails until reopened, which the
// owning Package does on demand.
func (d *Decompressor) CleanupCached() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cachedDl && d.localPath != "" {
		// Best effort; a stale cache file is reclaimed eventually anyway.
		_ = os.Remove(d.localPath)
	}
}

// ReadData returns the bytes of exactly one member, independent of
// iteration order. A member absent from the archive yields an error
// matching core.ErrNotFound; an empty member yields empty, non-nil data.
func (d *Decompressor) ReadData(ctx context.Context, name string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return nil, errors.New("archive not open")
	}

	target := normalizeMemberPath(name)
	if data, ok := d.members[target]; ok {
		return data, nil
	}
	if d.scanned {
		return nil, fmt.Errorf("member %q in %s: %w", name, d.localPath, core.ErrNotFound)
	}

	if d.optimize {
		// One full pass caches every member, so subsequent reads for
		// different members never rescan the archive.
		if err := d.scanAll(ctx); err != nil {
			return nil, err
		}
		if data, ok := d.members[target]; ok {
			return data, nil
		}
		return nil, fmt.Errorf("member %q in %s: %w", name, d.localPath, core.ErrNotFound)
	}

	var found []byte
	err := d.walkLocked(ctx, func(name string, r io.Reader) error {
		if name != target {
			return nil
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		found = data
		return ErrStopWalk
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("member %q in %s: %w", name, d.localPath, core.ErrNotFound)
	}
	d.members[target] = found
	return found, nil
}

// ReadContents returns every member path present in the archive, as
// absolute paths. The listing is computed once and cached.
func (d *Decompressor) ReadContents(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return nil, errors.New("archive not open")
	}
	if d.contents != nil {
		return d.contents, nil
	}

	var names []string
	err := d.walkLocked(ctx, func(name string, _ io.Reader) error {
		names = append(names, "/"+name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.contents = names
	return names, nil
}

// Walk streams every member of the archive through fn in one pass.
// Returning ErrStopWalk from fn stops the walk without error. The reader
// passed to fn is only valid during the call.
func (d *Decompressor) Walk(ctx context.Context, fn func(name string, r io.Reader) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return errors.New("archive not open")
	}
	return d.walkLocked(ctx, fn)
}

func (d *Decompressor) scanAll(ctx context.Context) error {
	err := d.walkLocked(ctx, func(name string, r io.Reader) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		d.members[name] = data
		return nil
	})
	if err != nil {
		return err
	}
	d.scanned = true
	names := make([]string, 0, len(d.members))
	for name := range d.members {
		names = append(names, "/"+name)
	}
	d.contents = names
	return nil
}

func (d *Decompressor) walkLocked(ctx context.Context, fn func(name string, r io.Reader) error) error {
	f, err := os.Open(d.localPath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", d.localPath, err)
	}
	defer f.Close()

	var walkErr error
	switch d.kind {
	case kindDeb:
		walkErr = walkDeb(f, fn)
	case kindRpm:
		walkErr = walkRpm(f, fn)
	default:
		walkErr = walkTar(ctx, d.localPath, f, fn)
	}
	if errors.Is(walkErr, ErrStopWalk) {
		return nil
	}
	return walkErr
}

// walkTar handles tar archives with any compression mholt/archives can
// identify (including multistream gzip as used by Alpine .apk files).
func walkTar(ctx context.Context, fname string, f io.Reader, fn func(name string, r io.Reader) error) error {
	format, stream, err := archives.Identify(ctx, path.Base(fname), f)
	var in io.Reader
	switch {
	case err == nil:
		if decomp, ok := format.(archives.Decompressor); ok {
			rc, err := decomp.OpenReader(stream)
			if err != nil {
				return fmt.Errorf("decompress %s: %w", fname, err)
			}
			defer rc.Close()
			in = rc
		} else {
			in = stream
		}
	case errors.Is(err, archives.NoMatch):
		// Plain uncompressed tar.
		in = stream
	default:
		return fmt.Errorf("identify %s: %w", fname, err)
	}
	return walkTarStream(in, fn)
}

func walkTarStream(in io.Reader, fn func(name string, r io.Reader) error) error {
	tr := tar.NewReader(in)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := fn(normalizeMemberPath(hdr.Name), tr); err != nil {
			return err
		}
	}
}

// walkDeb unwraps the ar container and walks the data.tar payload.
func walkDeb(f io.Reader, fn func(name string, r io.Reader) error) error {
	return walkDebMember(f, "data.tar", fn)
}

// WalkDebControl walks the control.tar payload of a .deb, which carries
// the control stanza instead of installed files.
func WalkDebControl(f io.Reader, fn func(name string, r io.Reader) error) error {
	err := walkDebMember(f, "control.tar", fn)
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

func walkDebMember(f io.Reader, prefix string, fn func(name string, r io.Reader) error) error {
	reader := ar.NewReader(f)
	for {
		hdr, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("no %s member found: %w", prefix, core.ErrNotFound)
		} else if err != nil {
			return fmt.Errorf("read deb: %w", err)
		}

		name := strings.TrimSpace(hdr.Name)
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		in, err := wrapCompressed(reader, name)
		if err != nil {
			return err
		}
		defer in.Close()
		return walkTarStream(in, fn)
	}
}

// walkRpm walks the cpio payload of an RPM package.
func walkRpm(f io.Reader, fn func(name string, r io.Reader) error) error {
	rpm, err := rpmutils.ReadRpm(f)
	if err != nil {
		return fmt.Errorf("read rpm: %w", err)
	}
	payload, err := rpm.PayloadReaderExtended()
	if err != nil {
		return fmt.Errorf("open rpm payload: %w", err)
	}
	for {
		fi, err := payload.Next()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("read rpm payload: %w", err)
		}
		if err := fn(normalizeMemberPath(fi.Name()), payload); err != nil {
			return err
		}
	}
}

// normalizeMemberPath canonicalizes archive member names: "./usr/bin/x",
// "/usr/bin/x" and "usr/bin/x" all map to "usr/bin/x".
func normalizeMemberPath(name string) string {
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	return path.Clean(name)
}

// ReadMemberData is a convenience for one-shot reads of a single member
// from a local archive file.
func ReadMemberData(ctx context.Context, archivePath, member string) ([]byte, error) {
	d := NewDecompressor()
	if err := d.Open(archivePath); err != nil {
		return nil, err
	}
	defer d.Close()
	return d.ReadData(ctx, member)
}
