// Package index provides the in-memory hash table implementation for the
// kvs store. This package embodies the core Bitcask architectural principle:
// maintain all keys in memory with minimal metadata while storing actual
// values on disk for optimal memory utilization.
//
// The index enables O(1) key lookups through an in-memory hash table while
// keeping storage overhead minimal, allowing the store to handle datasets
// significantly larger than available RAM while maintaining excellent read
// performance characteristics.
package index

import (
	stdErrors "errors"

	"github.com/iamNilotpal/kvs/pkg/errors"
)

var (
	ErrIndexClosed = stdErrors.New("operation failed: cannot access closed index")
)

// New creates and initializes a new Index instance, immediately ready for
// concurrent use.
func New(config *Config) (*Index, error) {
	if config == nil || config.Logger == nil {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "index configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}

	return &Index{log: config.Logger, entries: make(map[string]Locator, 2046)}, nil
}

// Insert records (or overwrites) the Locator for key, returning the Locator
// it displaced, if any. The displaced Locator is what lets callers account
// the superseded record's bytes as garbage without a second lookup.
func (idx *Index) Insert(key string, loc Locator) (Locator, bool, error) {
	if idx.closed.Load() {
		return Locator{}, false, ErrIndexClosed
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	prev, had := idx.entries[key]
	idx.entries[key] = loc
	return prev, had, nil
}

// Remove deletes key's entry from the index, returning the Locator it held,
// if any, so callers can add the dead record's bytes to the garbage total.
func (idx *Index) Remove(key string) (Locator, bool, error) {
	if idx.closed.Load() {
		return Locator{}, false, ErrIndexClosed
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	prev, had := idx.entries[key]
	if had {
		delete(idx.entries, key)
	}
	return prev, had, nil
}

// Get returns the Locator for key and whether it was found.
func (idx *Index) Get(key string) (Locator, bool, error) {
	if idx.closed.Load() {
		return Locator{}, false, ErrIndexClosed
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	loc, ok := idx.entries[key]
	return loc, ok, nil
}

// Len returns the number of live keys currently tracked by the index.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Snapshot returns a point-in-time copy of the full key->Locator mapping.
// The compactor uses this to decide, without holding the index lock for the
// duration of a merge, which records are still live.
func (idx *Index) Snapshot() (map[string]Locator, error) {
	if idx.closed.Load() {
		return nil, ErrIndexClosed
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	snapshot := make(map[string]Locator, len(idx.entries))
	for k, v := range idx.entries {
		snapshot[k] = v
	}

	return snapshot, nil
}

// Close gracefully shuts down the Index, releasing the underlying map and
// ensuring the index cannot be used after closure.
func (idx *Index) Close() error {
	if !idx.closed.CompareAndSwap(false, true) {
		return ErrIndexClosed
	}

	idx.log.Infow("closing index")

	idx.mu.Lock()
	defer idx.mu.Unlock()

	clear(idx.entries)
	idx.entries = nil

	idx.log.Infow("index closed")
	return nil
}
