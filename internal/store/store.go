// Package store implements the KvStore engine: the append-only,
// log-structured persistence layer that backs the kvs store. It owns
// segment file lifecycle, the in-memory index, and the background
// compactor, and exposes Set/Get/Remove on top of them.
//
// Concurrency is governed by a strict lock hierarchy, acquired only in this
// order, never the reverse:
//
//  1. compactionMu — held for the duration of a merge pass.
//  2. activeMu     — held exclusively across write + fsync + locator
//                     derivation, both for an ordinary append and
//                     for the compactor rotating the active segment out.
//  3. writerMu     — acquired inside an append before activeMu is released
//                     and held through the index mutation that publishes
//                     the appended record, so the compactor's
//                     reset-garbage-and-snapshot step orders strictly
//                     before or after the append+insert pair, never
//                     between them.
//
// Handles returned by Clone share all durable state but keep a private
// per-handle reader cache, so concurrent handles never contend seeking a
// shared file descriptor.
package store

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/kvs/internal/codec"
	"github.com/iamNilotpal/kvs/internal/compaction"
	"github.com/iamNilotpal/kvs/internal/index"
	"github.com/iamNilotpal/kvs/internal/meta"
	"github.com/iamNilotpal/kvs/internal/segment"
	"github.com/iamNilotpal/kvs/pkg/errors"
	"github.com/iamNilotpal/kvs/pkg/options"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// shared holds the durable state common to every handle cloned from the
// same Open call.
type shared struct {
	dir string
	log *zap.SugaredLogger
	opts *options.Options

	index     *index.Index
	compactor *compaction.Compaction

	compactionMu sync.Mutex
	activeMu     sync.Mutex
	writerMu     sync.Mutex

	activeID   uint64
	activeFile *os.File
	activeSize int64

	lowestLive atomic.Uint64
	closed     atomic.Bool
}

// Store is a handle onto a KvStore engine. The zero value is not usable;
// construct one with Open, and obtain additional concurrent handles with
// Clone.
type Store struct {
	*shared
	readers    map[uint64]*os.File
	lastPruned uint64
	isRoot     bool
}

// Config holds the parameters needed to open a Store.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// Open bootstraps a fresh store directory, or loads and replays an existing
// one, returning the root handle.
func Open(ctx context.Context, config *Config) (*Store, error) {
	if config == nil || config.Options == nil || config.Logger == nil {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "store configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}

	opts := config.Options
	log := config.Logger
	dir := filepath.Join(opts.DataDir, opts.SegmentOptions.Directory)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.ClassifyDirectoryCreationError(err, dir)
	}

	exists, err := meta.Check(dir)
	if err != nil {
		return nil, err
	}

	idx, err := index.New(&index.Config{Logger: log})
	if err != nil {
		return nil, err
	}

	s := &shared{dir: dir, log: log, opts: opts, index: idx}
	var replayGarbage uint64

	if !exists {
		log.Infow("bootstrapping fresh store directory", "dir", dir)

		if err := meta.Write(dir); err != nil {
			return nil, err
		}

		file, err := segment.CreateActive(dir, 1)
		if err != nil {
			return nil, err
		}

		s.activeID = 1
		s.activeFile = file
		s.activeSize = 0
		s.lowestLive.Store(1)
	} else {
		if err := segment.CleanupTempFiles(dir); err != nil {
			log.Warnw("failed to clean up stale merge temp files", "dir", dir, "error", err)
		}

		ids, err := segment.ListDataFiles(dir)
		if err != nil {
			return nil, err
		}

		if len(ids) == 0 {
			file, err := segment.CreateActive(dir, 1)
			if err != nil {
				return nil, err
			}

			s.activeID = 1
			s.activeFile = file
			s.lowestLive.Store(1)
		} else {
			s.lowestLive.Store(ids[0])
			s.activeID = ids[len(ids)-1]

			garbage, err := replaySegments(dir, idx, ids)
			if err != nil {
				return nil, err
			}
			replayGarbage = garbage

			file, err := segment.CreateActive(dir, s.activeID)
			if err != nil {
				return nil, err
			}

			size, err := segment.SeekEnd(file)
			if err != nil {
				_ = file.Close()
				return nil, err
			}

			s.activeFile = file
			s.activeSize = size
		}
	}

	root := &Store{shared: s, readers: make(map[uint64]*os.File), isRoot: true}

	s.compactor = compaction.New(&compaction.Config{
		Logger:    log,
		Threshold: opts.CompactThreshold,
		Interval:  opts.CompactInterval,
		Merge:     root.compact,
	})

	// Seed the garbage counter with what the replay observed, so a store
	// reopened with plenty of accumulated garbage schedules its first
	// compaction pass right away instead of waiting for fresh mutations.
	if replayGarbage > 0 {
		s.compactor.Trigger(replayGarbage)
	}

	log.Infow("store opened", "dir", dir, "activeSegment", s.activeID, "keys", idx.Len(), "replayGarbage", replayGarbage)
	return root, nil
}

// replaySegments rebuilds idx by streaming every command record out of each
// segment file in ascending id order, so later segments override earlier
// ones exactly as they did when originally written. It returns the number of
// garbage bytes the replay observed: every superseded Set, every removed
// record, and every tombstone itself.
func replaySegments(dir string, idx *index.Index, ids []uint64) (uint64, error) {
	var garbage uint64

	for _, id := range ids {
		file, err := segment.OpenReader(dir, id)
		if err != nil {
			return 0, err
		}

		var offset int64
		stream := codec.NewStream(file)

		for {
			cmd, next, err := stream.Next()
			if err != nil {
				if err == io.EOF {
					break
				}
				_ = file.Close()
				return 0, err
			}

			length := uint32(next - offset)

			switch cmd.Kind {
			case codec.KindSet:
				prev, had, err := idx.Insert(cmd.Key, index.Locator{FileID: id, Offset: offset, Length: length})
				if err != nil {
					_ = file.Close()
					return 0, err
				}
				if had {
					garbage += uint64(prev.Length)
				}
			case codec.KindRemove:
				prev, had, err := idx.Remove(cmd.Key)
				if err != nil {
					_ = file.Close()
					return 0, err
				}
				if had {
					garbage += uint64(prev.Length)
				}
				garbage += uint64(length)
			}

			offset = next
		}

		if err := file.Close(); err != nil {
			return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to close segment reader after replay")
		}
	}

	return garbage, nil
}

// Clone returns a new handle sharing this Store's durable state but with its
// own private reader cache, suitable for use from a separate goroutine.
func (s *Store) Clone() *Store {
	return &Store{shared: s.shared, readers: make(map[uint64]*os.File)}
}

// Set stores a key-value pair durably, overwriting any existing value.
func (s *Store) Set(key string, value []byte) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	cmd := codec.NewSetCommand(key, value)
	buf, err := codec.Encode(cmd)
	if err != nil {
		return err
	}

	var prev index.Locator
	var had bool
	if _, err := s.append(buf, func(loc index.Locator) error {
		var ierr error
		prev, had, ierr = s.index.Insert(key, loc)
		return ierr
	}); err != nil {
		return err
	}

	if had {
		s.compactor.Trigger(uint64(prev.Length))
	}

	s.rotateIfOversized()
	return nil
}

// Get retrieves the value associated with key. A key with no entry in the
// index is reported as ok == false, not as an error; a key is absent from
// the store exactly when it is absent from the index.
func (s *Store) Get(key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrStoreClosed
	}

	for {
		loc, ok, err := s.index.Get(key)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}

		cmd, err := s.readAt(key, loc)
		if err != nil {
			// A compaction can retire loc.FileID between the index read and
			// the open. The merge installs the surviving copy's locator
			// before any segment is deleted, so resolving the key again
			// yields a locator that is still on disk. The lowestLive guard
			// keeps a genuinely missing segment file — an index/disk
			// inconsistency — surfacing as the error it is.
			if isRetiredSegment(err) && loc.FileID < s.lowestLive.Load() {
				continue
			}
			return nil, false, err
		}

		if cmd.Kind != codec.KindSet || cmd.Key != key {
			return nil, false, errors.NewUnexpectedRecordError(key, string(cmd.Kind), string(codec.KindSet))
		}

		return cmd.Value, true, nil
	}
}

// isRetiredSegment reports whether err is readAt's segment-no-longer-on-disk
// failure, the one readAt error a fresh index resolution can outrun.
func isRetiredSegment(err error) bool {
	ie, ok := errors.AsIndexError(err)
	return ok && ie.Code() == errors.ErrorCodeIndexInvalidSegmentID
}

// Remove deletes key from the store. Removing a key that is not present is
// reported as a KeyNotFoundError without appending a tombstone record.
func (s *Store) Remove(key string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	_, ok, err := s.index.Get(key)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewKeyNotFoundError(key)
	}

	cmd := codec.NewRemoveCommand(key)
	buf, err := codec.Encode(cmd)
	if err != nil {
		return err
	}

	var prev index.Locator
	var had bool
	loc, err := s.append(buf, func(index.Locator) error {
		var ierr error
		prev, had, ierr = s.index.Remove(key)
		return ierr
	})
	if err != nil {
		return err
	}

	// The tombstone itself is garbage the moment it is written; the Set it
	// killed joins it, unless a racing Remove already claimed that entry.
	garbage := uint64(loc.Length)
	if had {
		garbage += uint64(prev.Length)
	}
	s.compactor.Trigger(garbage)
	s.rotateIfOversized()
	return nil
}

// append writes buf to the active segment and invokes update with the
// Locator describing where it landed, returning that Locator. The active
// file is opened for append, and the record's offset is taken from the
// tracked activeSize rather than a seek. activeMu is held exclusively
// across write + fsync + locator derivation,
// both to serialize concurrent appenders' in-memory offset tracking and to
// block a compaction rotation from swapping the active file out from under
// an in-flight write.
//
// writerMu is acquired before activeMu is released and held across update,
// which performs the index mutation publishing the record. The compactor
// snapshots the index under writerMu after rotating the active segment, so
// this ordering guarantees the snapshot observes either nothing of this
// append or the appended record together with its index entry — a record
// durably written to a soon-to-be-retired segment can never be invisible to
// the snapshot that decides what survives the merge.
func (s *Store) append(buf []byte, update func(index.Locator) error) (index.Locator, error) {
	s.activeMu.Lock()

	offset := s.activeSize

	n, err := s.activeFile.Write(buf)
	if err != nil {
		id := s.activeID
		s.activeMu.Unlock()
		return index.Locator{}, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to append record to active segment").
			WithSegmentID(int(id)).WithOffset(int(offset))
	}

	if err := s.activeFile.Sync(); err != nil {
		id := s.activeID
		s.activeMu.Unlock()
		return index.Locator{}, errors.ClassifySyncError(err, segment.DataFileName(id), s.dir, int(offset))
	}

	s.activeSize += int64(n)
	loc := index.Locator{FileID: s.activeID, Offset: offset, Length: uint32(n)}

	s.writerMu.Lock()
	s.activeMu.Unlock()
	uerr := update(loc)
	s.writerMu.Unlock()

	return loc, uerr
}

// rotateIfOversized rotates the active segment out when its size has crossed
// the opt-in SegmentOptions.Size ceiling, independent of the compactor. It is
// a no-op whenever that ceiling is left at its default of 0 (disabled), so
// workloads that never opt in pay no extra synchronization cost. Acquiring
// compactionMu before activeMu keeps this in the same lock order the
// compactor itself uses to rotate the active segment.
func (s *Store) rotateIfOversized() {
	limit := s.opts.SegmentOptions.Size
	if limit == 0 {
		return
	}

	s.compactionMu.Lock()
	defer s.compactionMu.Unlock()

	s.activeMu.Lock()
	oldSize := s.activeSize
	oldID := s.activeID
	s.activeMu.Unlock()
	if uint64(oldSize) < limit {
		return
	}

	newFile, err := segment.CreateActive(s.dir, oldID+1)
	if err != nil {
		s.log.Errorw("failed to rotate oversized active segment", "segment", oldID, "error", err)
		return
	}

	s.activeMu.Lock()
	oldFile := s.activeFile
	s.activeFile = newFile
	s.activeID = oldID + 1
	s.activeSize = 0
	s.activeMu.Unlock()

	if err := oldFile.Close(); err != nil {
		s.log.Errorw("failed to close retired active segment", "segment", oldID, "error", err)
	}

	s.log.Infow("rotated active segment past size ceiling", "retired", oldID, "newActive", oldID+1, "limit", limit)
}

// pruneStaleReaders drops this handle's cached readers for segment ids below
// the current lowestLive, called lazily before a read so a handle that has
// been idle through several compactions doesn't keep file descriptors open
// for segments the compactor has already deleted.
func (s *Store) pruneStaleReaders() {
	lowest := s.lowestLive.Load()
	if lowest <= s.lastPruned {
		return
	}

	for id, file := range s.readers {
		if id < lowest {
			_ = file.Close()
			delete(s.readers, id)
		}
	}
	s.lastPruned = lowest
}

// readAt fetches and decodes the command record described by loc, using this
// handle's private reader cache to avoid reopening segment files on every
// call. key is the index key being resolved, carried along for error context.
func (s *Store) readAt(key string, loc index.Locator) (codec.Command, error) {
	s.pruneStaleReaders()

	file, ok := s.readers[loc.FileID]
	if !ok {
		var err error
		file, err = segment.OpenReader(s.dir, loc.FileID)
		if err != nil {
			if stdErrors.Is(err, os.ErrNotExist) {
				return codec.Command{}, errors.NewSegmentIDError(loc.FileID, key)
			}
			return codec.Command{}, err
		}
		s.readers[loc.FileID] = file
	}

	buf := make([]byte, loc.Length)
	if _, err := file.ReadAt(buf, loc.Offset); err != nil {
		return codec.Command{}, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read record from segment").
			WithSegmentID(int(loc.FileID)).WithOffset(int(loc.Offset))
	}

	cmd, _, err := codec.Decode(buf)
	if err != nil {
		return codec.Command{}, err
	}

	return cmd, nil
}

// Close releases this handle's private reader cache. The root handle
// additionally shuts down the shared compactor and index and closes the
// active segment file; only call Close on the root handle once every cloned
// handle derived from it has also been closed.
func (s *Store) Close() error {
	var errs error

	for id, file := range s.readers {
		if err := file.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("segment %d: %w", id, err))
		}
	}
	s.readers = nil

	if !s.isRoot {
		return errs
	}

	if !s.closed.CompareAndSwap(false, true) {
		return errs
	}

	if err := s.compactor.Shutdown(); err != nil {
		errs = multierr.Append(errs, err)
	}

	if err := s.index.Close(); err != nil {
		errs = multierr.Append(errs, err)
	}

	if err := s.activeFile.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("active segment: %w", err))
	}

	return errs
}
