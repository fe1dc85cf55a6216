package options

import "time"

const (
	// Specifies the default base directory where the store will keep its
	// segment files and meta marker.
	// If no other directory is specified during initialization, this path will be used.
	DefaultDataDir = "/var/lib/kvs"

	// Defines the default time duration between automatic compaction sweeps.
	// By default, a background sweep runs every 5 hours in addition to the
	// threshold-triggered compaction each Set or Remove may schedule.
	DefaultCompactInterval = time.Hour * 5

	// Represents the minimum allowed size for a segment file in bytes (512MB),
	// applied only when opt-in size-based rotation (SegmentOptions.Size) is enabled.
	MinSegmentSize uint64 = 512 * 1024 * 1024

	// Represents the maximum allowed size for a segment file in bytes (4GB),
	// applied only when opt-in size-based rotation (SegmentOptions.Size) is enabled.
	MaxSegmentSize uint64 = 4 * 1024 * 1024 * 1024

	// DefaultSegmentSize is 0, meaning size-based rotation is disabled by
	// default: the active segment rotates only when the compactor runs.
	DefaultSegmentSize uint64 = 0

	// Specifies the default subdirectory within the main data directory
	// where segment files will be stored.
	DefaultSegmentDirectory = "/segments"

	// DefaultCompactThreshold is the accumulated garbage size, in bytes, at
	// which a Set or Remove schedules a compaction pass (2MiB).
	DefaultCompactThreshold uint64 = 2 * 1024 * 1024
)

// NewDefaultOptions returns a fresh Options value populated with the
// package defaults. SegmentOptions is allocated anew on every call so
// callers can freely mutate their own copy without affecting others.
func NewDefaultOptions() Options {
	return Options{
		DataDir:          DefaultDataDir,
		CompactInterval:  DefaultCompactInterval,
		CompactThreshold: DefaultCompactThreshold,
		SegmentOptions: &segmentOptions{
			Size:      DefaultSegmentSize,
			Directory: DefaultSegmentDirectory,
		},
	}
}
