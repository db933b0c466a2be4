// Package download provides the HTTP download client and the remote/local
// path resolver used by all repository backends.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Downloader fetches a URL to a local path, retrying as configured.
type Downloader interface {
	DownloadFile(ctx context.Context, url, dest string) error
}

// Client is the default HTTP Downloader.
type Client struct {
	hc        *http.Client
	retries   int
	userAgent string
	log       *zerolog.Logger
}

// NewClient creates a download client with sane defaults for repository
// mirrors: generous timeout, a few retries with backoff.
func NewClient(log *zerolog.Logger) *Client {
	return &Client{
		hc:        &http.Client{Timeout: 30 * time.Minute},
		retries:   3,
		userAgent: "appstream-generator",
		log:       log,
	}
}

// DownloadFile fetches url into dest, writing through a temporary file so
// a failed transfer never leaves a truncated artifact behind.
func (c *Client) DownloadFile(ctx context.Context, url, dest string) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.log.Debug().Str("url", url).Int("attempt", attempt).Msg("retrying download")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}
		if lastErr = c.fetchOnce(ctx, url, dest); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("download %s: %w", url, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

// IsRemote reports whether path names a remote resource by URL scheme.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") ||
		strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "ftp://")
}
