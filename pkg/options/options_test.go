package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultsDisableSizeRotation(t *testing.T) {
	opts := NewDefaultOptions()
	assert.EqualValues(t, 0, opts.SegmentOptions.Size)
	assert.EqualValues(t, DefaultCompactThreshold, opts.CompactThreshold)
}

func TestWithSegmentSizeRejectsOutOfRange(t *testing.T) {
	opts := NewDefaultOptions()
	WithSegmentSize(1)(&opts)
	assert.EqualValues(t, 0, opts.SegmentOptions.Size)
}

func TestWithSegmentSizeZeroDisablesRotation(t *testing.T) {
	opts := NewDefaultOptions()
	WithSegmentSize(MinSegmentSize)(&opts)
	assert.EqualValues(t, MinSegmentSize, opts.SegmentOptions.Size)

	WithSegmentSize(0)(&opts)
	assert.EqualValues(t, 0, opts.SegmentOptions.Size)
}

func TestWithCompactIntervalRejectsTooShort(t *testing.T) {
	opts := NewDefaultOptions()
	WithCompactInterval(time.Minute)(&opts)
	assert.Equal(t, DefaultCompactInterval, opts.CompactInterval)
}

func TestWithDataDirTrimsWhitespace(t *testing.T) {
	opts := NewDefaultOptions()
	WithDataDir("  /tmp/data  ")(&opts)
	assert.Equal(t, "/tmp/data", opts.DataDir)
}
