package index

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Locator contains the minimum metadata required to locate and retrieve a
// command record from a segment file: which segment it lives in, the byte
// offset the record starts at, and how many bytes the record occupies.
//
// Field order follows Go's alignment rules, placing 8-byte fields before the
// 4-byte field to avoid padding.
type Locator struct {
	// FileID identifies which segment file this entry's record lives in.
	FileID uint64

	// Offset is the byte position within the segment file where the
	// record begins.
	Offset int64

	// Length is the number of bytes the encoded record occupies, letting
	// a read fetch the whole record in a single I/O call.
	Length uint32
}

// Index is the in-memory hash table mapping keys to the Locator describing
// where their most recent value lives on disk. It is the sole source of
// truth for what keys currently exist in the store; a key absent from the
// index is absent from the store, regardless of what stale records remain
// on disk waiting for compaction.
type Index struct {
	log      *zap.SugaredLogger
	entries  map[string]Locator
	mu       sync.RWMutex
	closed   atomic.Bool
}

// Config encapsulates the configuration parameters required to initialize an Index.
type Config struct {
	Logger *zap.SugaredLogger
}
