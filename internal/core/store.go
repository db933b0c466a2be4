package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// DataStore is the persistent metadata cache consulted by the staleness
// checks. The full store (component cache, hints, media pool) lives
// outside this layer; only the repository-state slice is needed here.
type DataStore interface {
	// RepoHash returns the stored fingerprint for a repository slice,
	// or "" if none has been recorded yet.
	RepoHash(key string) (string, error)

	// SetRepoHash records the fingerprint for a repository slice.
	SetRepoHash(key, hash string) error

	Close() error
}

// FingerprintChanged compares the sha256 fingerprint of the file at path
// with the one recorded in the store under key, updating the record when
// it differs. A file that cannot be read counts as changed so the triplet
// is reprocessed rather than silently skipped.
func FingerprintChanged(store DataStore, key, path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return true, nil
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	current := hex.EncodeToString(h.Sum(nil))

	stored, err := store.RepoHash(key)
	if err != nil {
		return false, fmt.Errorf("read repo hash %s: %w", key, err)
	}
	if stored == current {
		return false, nil
	}
	if err := store.SetRepoHash(key, current); err != nil {
		return false, fmt.Errorf("update repo hash %s: %w", key, err)
	}
	return true, nil
}
