// Package codec implements the self-delimiting command record format written
// to segment files. Each record describes a single mutation — a Set or a
// Remove — and is decoded one at a time while replaying a segment, either to
// rebuild the index on open or to stream live records during compaction.
//
// A streaming-capable serializer is required because segment files are read
// back as a sequence of concatenated records with no outer length prefix or
// framing between them; encoding/json.Decoder supports exactly this mode,
// decoding one JSON value per call and leaving the stream positioned at the
// start of the next one.
package codec

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/iamNilotpal/kvs/pkg/errors"
)

// Kind identifies which mutation a Command represents.
type Kind string

const (
	// KindSet records that Key was bound to Value.
	KindSet Kind = "set"

	// KindRemove records that Key was deleted.
	KindRemove Kind = "rm"
)

// Command is the on-disk representation of a single mutation. It is the unit
// the store appends to the active segment and the unit the index and
// compactor replay when reading segments back.
type Command struct {
	Kind  Kind   `json:"kind"`
	Key   string `json:"key"`
	Value []byte `json:"value,omitempty"`
}

// NewSetCommand builds a Command recording that key was bound to value.
func NewSetCommand(key string, value []byte) Command {
	return Command{Kind: KindSet, Key: key, Value: value}
}

// NewRemoveCommand builds a Command recording that key was deleted.
func NewRemoveCommand(key string) Command {
	return Command{Kind: KindRemove, Key: key}
}

// Encode serializes a Command into its on-disk byte representation. The
// returned bytes are exactly what Stream.Next consumes for one record; no
// additional delimiter needs to be appended by the caller.
func Encode(cmd Command) ([]byte, error) {
	buf, err := json.Marshal(cmd)
	if err != nil {
		return nil, errors.NewCodecError("", 0, err).WithDetail("kind", string(cmd.Kind)).WithDetail("key", cmd.Key)
	}
	return buf, nil
}

// Decode parses a single Command from buf, returning the command and the
// number of bytes consumed from the front of buf. Extra trailing bytes in
// buf belonging to a subsequent record are left unconsumed.
func Decode(buf []byte) (Command, int64, error) {
	dec := json.NewDecoder(bytes.NewReader(buf))

	var cmd Command
	if err := dec.Decode(&cmd); err != nil {
		return Command{}, 0, errors.NewCodecError("", 0, err)
	}

	return cmd, dec.InputOffset(), nil
}

// Stream decodes a sequence of concatenated Command records from an
// underlying reader, one at a time. It is the type used to replay a segment
// file in full: repeated calls to Next walk forward through the stream until
// a clean io.EOF is returned at a record boundary.
type Stream struct {
	dec    *json.Decoder
	offset int64
}

// NewStream wraps r for sequential Command decoding.
func NewStream(r io.Reader) *Stream {
	return &Stream{dec: json.NewDecoder(r)}
}

// Next decodes the next Command in the stream along with the byte offset, in
// the underlying reader, immediately following that record. It returns
// io.EOF once the stream is exhausted at a clean record boundary. Any other
// error indicates a malformed record; a trailing record truncated by a crash
// mid-write to the active segment surfaces as io.ErrUnexpectedEOF.
func (s *Stream) Next() (Command, int64, error) {
	var cmd Command
	if err := s.dec.Decode(&cmd); err != nil {
		if err == io.EOF {
			return Command{}, s.offset, io.EOF
		}
		return Command{}, s.offset, errors.NewCodecError("", int(s.offset), err)
	}

	s.offset = s.dec.InputOffset()
	return cmd, s.offset, nil
}
