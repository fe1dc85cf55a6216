package codec

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cmd := NewSetCommand("foo", []byte("bar"))

	buf, err := Encode(cmd)
	require.NoError(t, err)

	decoded, n, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, cmd, decoded)
	assert.EqualValues(t, len(buf), n)
}

func TestStreamReadsConcatenatedRecords(t *testing.T) {
	set := NewSetCommand("foo", []byte("bar"))
	rm := NewRemoveCommand("foo")

	setBuf, err := Encode(set)
	require.NoError(t, err)
	rmBuf, err := Encode(rm)
	require.NoError(t, err)

	var all bytes.Buffer
	all.Write(setBuf)
	all.Write(rmBuf)

	stream := NewStream(&all)

	first, off1, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, set, first)
	assert.EqualValues(t, len(setBuf), off1)

	second, off2, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, rm, second)
	assert.EqualValues(t, len(setBuf)+len(rmBuf), off2)

	_, _, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamTruncatedTrailingRecord(t *testing.T) {
	setBuf, err := Encode(NewSetCommand("foo", []byte("bar")))
	require.NoError(t, err)

	truncated := setBuf[:len(setBuf)-3]
	stream := NewStream(bytes.NewReader(truncated))

	_, _, err = stream.Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}
