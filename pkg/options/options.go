// Package options provides data structures and functions for configuring
// the kvs store. It defines various parameters that control storage
// behavior, performance, and maintenance operations, such as directory
// paths, segment rotation, and compaction thresholds.
package options

import (
	"strings"
	"time"
)

// Defines configurable parameters for each segment.
// It provides fine-grained control over segment behavior, performance, and resource utilization.
type segmentOptions struct {
	// Size is an opt-in ceiling on how large the active segment may grow
	// before it is rotated outside of compaction. The store's normal
	// lifecycle only rotates the active segment when the compactor runs;
	// setting Size gives operators an escape valve for workloads that
	// write faster than garbage accumulates.
	//
	//  - Default: 0 (disabled)
	//  - Minimum when enabled: 512MB
	//  - Maximum when enabled: 4GB
	Size uint64 `json:"maxSegmentSize"`

	// Specifies where segment files are stored.
	//
	// Default: "/var/lib/kvs/segments"
	Directory string `json:"directory"`
}

// Defines the configuration parameters for the kvs store.
// It provides control over storage, performance and maintenance aspects.
type Options struct {
	// Specifies the base path where files will be stored.
	//
	// Default: "/var/lib/kvs"
	DataDir string `json:"dataDir"`

	// Defines how often a background compaction sweep runs independently
	// of the garbage-threshold trigger. More frequent compaction means
	// more optimal storage but higher overhead.
	//
	// Default: 5h
	CompactInterval time.Duration `json:"compactInterval"`

	// Defines the accumulated garbage size, in bytes, at which a Set or
	// Remove schedules a compaction pass.
	//
	// Default: 2MiB
	CompactThreshold uint64 `json:"compactThreshold"`

	// Configures segment management including the opt-in size ceiling.
	SegmentOptions *segmentOptions `json:"segmentOptions"`
}

// OptionFunc is a function type that modifies the store's configuration.
type OptionFunc func(*Options)

// Applies a predefined set of default configuration values to the Options struct.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		opts := NewDefaultOptions()
		o.DataDir = opts.DataDir
		o.SegmentOptions = opts.SegmentOptions
		o.CompactInterval = opts.CompactInterval
		o.CompactThreshold = opts.CompactThreshold
	}
}

// Sets the primary data directory for the store.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// Sets the interval at which the store performs background compaction sweeps.
// An interval not longer than DefaultCompactInterval is ignored.
func WithCompactInterval(interval time.Duration) OptionFunc {
	return func(o *Options) {
		if interval > DefaultCompactInterval {
			o.CompactInterval = interval
		}
	}
}

// Sets the accumulated garbage size that triggers a compaction pass.
func WithCompactThreshold(threshold uint64) OptionFunc {
	return func(o *Options) {
		if threshold > 0 {
			o.CompactThreshold = threshold
		}
	}
}

// Sets the directory specifically for storing segment files.
func WithSegmentDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.SegmentOptions.Directory = directory
		}
	}
}

// Sets the maximum size of the active segment before it is rotated outside
// of compaction. Passing 0 disables size-based rotation.
func WithSegmentSize(size uint64) OptionFunc {
	return func(o *Options) {
		if size == 0 {
			o.SegmentOptions.Size = 0
			return
		}
		if size >= MinSegmentSize && size <= MaxSegmentSize {
			o.SegmentOptions.Size = size
		}
	}
}
