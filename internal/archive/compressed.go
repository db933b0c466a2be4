package archive

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// wrapCompressed wraps r with the decompressor matching the file name's
// extension. Unknown extensions pass through unchanged.
func wrapCompressed(r io.Reader, name string) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", name, err)
		}
		return gz, nil
	case strings.HasSuffix(name, ".xz"):
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("xz %s: %w", name, err)
		}
		return io.NopCloser(xzr), nil
	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd %s: %w", name, err)
		}
		return zr.IOReadCloser(), nil
	case strings.HasSuffix(name, ".bz2"):
		return io.NopCloser(bzip2.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}

// OpenCompressed opens a flat (non-archive) possibly-compressed file,
// such as Packages.gz or primary.xml.zst, and returns a reader over the
// decompressed stream.
func OpenCompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	in, err := wrapCompressed(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &compressedFile{in: in, f: f}, nil
}

type compressedFile struct {
	in io.ReadCloser
	f  *os.File
}

func (c *compressedFile) Read(p []byte) (int, error) { return c.in.Read(p) }

func (c *compressedFile) Close() error {
	err := c.in.Close()
	if ferr := c.f.Close(); err == nil {
		err = ferr
	}
	return err
}
