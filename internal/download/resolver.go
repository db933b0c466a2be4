package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/ximion/appstream-generator-sub004/internal/core"
)

// Resolver turns a (rootPath, fileName) pair into a guaranteed-existing
// local path, downloading into a cache directory when the root is remote.
// A bounded LRU memoizes resolved URLs so concurrent triplets sharing an
// index artifact do not fetch it twice within a run.
type Resolver struct {
	dl   Downloader
	seen *lru.Cache[string, string]
	log  *zerolog.Logger
}

// NewResolver creates a resolver backed by the given downloader.
func NewResolver(dl Downloader, log *zerolog.Logger) *Resolver {
	seen, _ := lru.New[string, string](256)
	return &Resolver{dl: dl, seen: seen, log: log}
}

// DownloadIfNecessary classifies rootPath/fileName as remote or local.
// Remote sources are fetched once into tmpDir/cacheFileName and that path
// is returned; local paths are returned unchanged if they exist, and fail
// with core.ErrNotFound otherwise. The local-missing failure is fatal to
// the triplet being processed, since the whole index source is gone.
func (r *Resolver) DownloadIfNecessary(ctx context.Context, rootPath, tmpDir, fileName, cacheFileName string) (string, error) {
	if IsRemote(rootPath) {
		url := strings.TrimSuffix(rootPath, "/") + "/" + strings.TrimPrefix(fileName, "/")

		if local, ok := r.seen.Get(url); ok {
			if _, err := os.Stat(local); err == nil {
				return local, nil
			}
			r.seen.Remove(url)
		}

		if err := os.MkdirAll(tmpDir, 0o755); err != nil {
			return "", fmt.Errorf("create cache dir %s: %w", tmpDir, err)
		}
		local := filepath.Join(tmpDir, cacheFileName)
		if _, err := os.Stat(local); err != nil {
			r.log.Debug().Str("url", url).Str("dest", local).Msg("fetching remote file")
			if err := r.dl.DownloadFile(ctx, url, local); err != nil {
				return "", err
			}
		}
		r.seen.Add(url, local)
		return local, nil
	}

	path := filepath.Join(rootPath, fileName)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("local file %q: %w", path, core.ErrNotFound)
	}
	return path, nil
}
