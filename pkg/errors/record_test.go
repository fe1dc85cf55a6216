package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUnexpectedRecordError(t *testing.T) {
	err := NewUnexpectedRecordError("foo", "rm", "set")

	assert.True(t, IsRecordError(err))

	re, ok := AsRecordError(err)
	assert.True(t, ok)
	assert.Equal(t, "foo", re.Key())
	assert.Equal(t, "rm", re.Found())
	assert.Equal(t, "set", re.Expected())
	assert.Equal(t, ErrorCodeUnexpectedRecord, GetErrorCode(err))
}

func TestNewBadPathAndBadMetadataErrors(t *testing.T) {
	bp := NewBadPathError("/tmp/x", nil)
	assert.Equal(t, ErrorCodeBadPath, GetErrorCode(bp))

	bm := NewBadMetadataError("/tmp/x/meta", nil)
	assert.Equal(t, ErrorCodeBadMetadata, GetErrorCode(bm))

	codecErr := NewCodecError("1.data", 42, nil)
	assert.Equal(t, ErrorCodeCodec, GetErrorCode(codecErr))
}
