package core

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// PackageIndex enumerates the packages of one repository backend. One
// instance is long-lived for a generator run and may be queried from
// multiple workers.
type PackageIndex interface {
	// PackagesFor returns the packages of the (suite, section, arch)
	// triplet. The list is computed once per triplet per index lifetime
	// and cached; concurrent first-time callers coalesce into a single
	// computation. Malformed records are dropped with a warning, a
	// missing index source is fatal or yields an empty list depending on
	// the backend's contract.
	PackagesFor(ctx context.Context, suite, section, arch string, withLongDescs bool) ([]Package, error)

	// PackageForFile builds a single Package from one archive file for
	// ad-hoc processing. Backends without this capability return
	// (nil, nil).
	PackageForFile(ctx context.Context, fname, suite, section string) (Package, error)

	// HasChanges reports whether the triplet needs reprocessing. For a
	// fixed index instance and triplet the answer is stable for the
	// index's entire lifetime.
	HasChanges(ctx context.Context, store DataStore, suite, section, arch string) (bool, error)

	// Release drops all cached package lists so memory stays bounded
	// between independent generator passes. The index stays usable.
	Release()
}

// TripletKey builds the "suite/section/arch" cache key.
func TripletKey(suite, section, arch string) string {
	return suite + "/" + section + "/" + arch
}

// TripletCache is the compute-once package-list cache shared by all
// backends. Concurrent first requests for the same triplet coalesce via
// singleflight; later requests observe the stored result.
type TripletCache struct {
	mu      sync.Mutex
	group   singleflight.Group
	entries map[string][]Package
}

// NewTripletCache creates an empty cache.
func NewTripletCache() *TripletCache {
	return &TripletCache{entries: make(map[string][]Package)}
}

// Get returns the cached list for key, invoking compute at most once per
// key per cache lifetime. A failed computation is not cached.
func (c *TripletCache) Get(key string, compute func() ([]Package, error)) ([]Package, error) {
	c.mu.Lock()
	if pkgs, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return pkgs, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check: a previous flight may have stored the entry after
		// our first look.
		c.mu.Lock()
		if pkgs, ok := c.entries[key]; ok {
			c.mu.Unlock()
			return pkgs, nil
		}
		c.mu.Unlock()

		pkgs, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = pkgs
		c.mu.Unlock()
		return pkgs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Package), nil
}

// Release finishes all cached packages and drops the entries.
func (c *TripletCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pkgs := range c.entries {
		for _, pkg := range pkgs {
			_ = pkg.Finish()
		}
	}
	c.entries = make(map[string][]Package)
}

// AnswerCache memoizes per-triplet boolean answers so HasChanges stays
// referentially stable over an index's lifetime.
type AnswerCache struct {
	mu      sync.Mutex
	answers map[string]bool
}

// NewAnswerCache creates an empty cache.
func NewAnswerCache() *AnswerCache {
	return &AnswerCache{answers: make(map[string]bool)}
}

// Get returns the memoized answer for key, computing it on first use.
func (c *AnswerCache) Get(key string, compute func() (bool, error)) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if answer, ok := c.answers[key]; ok {
		return answer, nil
	}
	answer, err := compute()
	if err != nil {
		return false, err
	}
	c.answers[key] = answer
	return answer, nil
}
