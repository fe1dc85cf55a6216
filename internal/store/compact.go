package store

import (
	"os"

	"github.com/iamNilotpal/kvs/internal/codec"
	"github.com/iamNilotpal/kvs/internal/index"
	"github.com/iamNilotpal/kvs/internal/segment"
	"github.com/iamNilotpal/kvs/pkg/errors"
)

// compact runs one merge pass. It rotates the active segment first, so no
// write landing after that point can ever fall below mergeID; only then does
// it snapshot the index, rewrite every currently-live record below mergeID
// into a single new segment, promote that segment, and delete every segment
// file the merge made obsolete. Rotating before snapshotting is what makes
// the snapshot a faithful, race-free picture of everything the merge is
// about to retire — doing it the other way around would let a write arrive
// in the old active segment after it was already scheduled for deletion.
//
// It is installed as the compaction worker's MergeFunc and therefore always
// runs on the single compaction goroutine; compactionMu additionally
// protects against the size-ceiling rotation path swapping the active
// segment mid-pass.
func (s *Store) compact() error {
	s.compactionMu.Lock()
	defer s.compactionMu.Unlock()

	oldActiveID := s.activeID
	mergeID := oldActiveID + 1
	newActiveID := mergeID + 1

	newActiveFile, err := segment.CreateActive(s.dir, newActiveID)
	if err != nil {
		return err
	}

	s.activeMu.Lock()
	oldActiveFile := s.activeFile
	s.activeFile = newActiveFile
	s.activeID = newActiveID
	s.activeSize = 0
	s.activeMu.Unlock()

	if err := oldActiveFile.Close(); err != nil {
		s.log.Errorw("failed to close retired active segment", "segment", oldActiveID, "error", err)
	}

	// No write can land in a segment below mergeID from this point on: every
	// append goes through s.append, which reads s.activeID/s.activeFile under
	// activeMu, and that now points at newActiveID.
	s.writerMu.Lock()
	s.compactor.ResetGarbage()
	snapshot, err := s.index.Snapshot()
	s.writerMu.Unlock()
	if err != nil {
		return err
	}

	type migrated struct {
		key string
		loc index.Locator
	}

	live := make([]migrated, 0, len(snapshot))
	for key, loc := range snapshot {
		if loc.FileID < mergeID {
			live = append(live, migrated{key: key, loc: loc})
		}
	}

	// Nothing to rewrite: advance lowestLive past the retired segments and
	// delete them without materializing an empty merge segment.
	if len(live) == 0 {
		s.retireSegments(mergeID)
		s.log.Infow("compaction pass complete", "mergedInto", mergeID, "newActive", newActiveID, "keys", 0)
		return nil
	}

	// Source readers are private to this pass. The per-handle caches on the
	// store handles stay untouched — they prune themselves once lowestLive
	// advances — so a merge never contends with a concurrent Get over a
	// shared file descriptor.
	readers := make(map[uint64]*os.File)
	defer func() {
		for _, file := range readers {
			_ = file.Close()
		}
	}()

	tempFile, err := segment.OpenMergeTemp(s.dir, mergeID)
	if err != nil {
		return err
	}

	var offset int64
	reinstalls := make([]migrated, 0, len(live))

	for _, m := range live {
		file, ok := readers[m.loc.FileID]
		if !ok {
			file, err = segment.OpenReader(s.dir, m.loc.FileID)
			if err != nil {
				_ = tempFile.Close()
				return err
			}
			readers[m.loc.FileID] = file
		}

		buf := make([]byte, m.loc.Length)
		if _, err := file.ReadAt(buf, m.loc.Offset); err != nil {
			_ = tempFile.Close()
			return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read record during merge").
				WithSegmentID(int(m.loc.FileID)).WithOffset(int(m.loc.Offset))
		}

		cmd, _, err := codec.Decode(buf)
		if err != nil {
			_ = tempFile.Close()
			return err
		}

		// Only Sets are live; the index never holds a locator for a
		// tombstone, so decoding one here means the segment bytes and the
		// index disagree.
		if cmd.Kind != codec.KindSet || cmd.Key != m.key {
			_ = tempFile.Close()
			return errors.NewUnexpectedRecordError(m.key, string(cmd.Kind), string(codec.KindSet))
		}

		n, werr := tempFile.Write(buf)
		if werr != nil {
			_ = tempFile.Close()
			return errors.NewStorageError(werr, errors.ErrorCodeIO, "failed to write merge record to temp segment").
				WithSegmentID(int(mergeID)).WithOffset(int(offset))
		}

		reinstalls = append(reinstalls, migrated{
			key: m.key,
			loc: index.Locator{FileID: mergeID, Offset: offset, Length: uint32(n)},
		})
		offset += int64(n)
	}

	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return errors.ClassifySyncError(err, segment.TempFileName(mergeID), s.dir, int(offset))
	}

	if err := tempFile.Close(); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to close merge temp file").
			WithFileName(segment.TempFileName(mergeID)).WithPath(s.dir)
	}

	if err := segment.PromoteTemp(s.dir, mergeID); err != nil {
		return err
	}

	// Reinstall surviving entries. A key whose locator has moved on to
	// newActiveID since the snapshot was taken is fresher than what this
	// pass migrated and must not be clobbered; the merge copy of that key
	// is already garbage, so its length is added to the counter instead.
	for _, m := range reinstalls {
		s.writerMu.Lock()
		current, ok, err := s.index.Get(m.key)
		stale := !ok || current.FileID >= newActiveID
		if err == nil && !stale {
			_, _, err = s.index.Insert(m.key, m.loc)
		}
		s.writerMu.Unlock()

		if err != nil {
			return err
		}
		if stale {
			// The key was updated or removed since the snapshot was taken,
			// so this merge copy is already garbage.
			s.compactor.Trigger(uint64(m.loc.Length))
		}
	}

	s.retireSegments(mergeID)
	s.log.Infow("compaction pass complete", "mergedInto", mergeID, "newActive", newActiveID, "keys", len(reinstalls))
	return nil
}

// retireSegments advances lowestLive to mergeID and then deletes every
// segment file below it. lowestLive moves first: once the store completes,
// in-flight readers that already resolved a locator below mergeID have
// either seen the advanced value (and won't open a fresh reader for it) or
// opened their reader before it landed (and keep it valid via the open file
// descriptor). Deleting first would let a reader observe a stale lowestLive
// pointing at a segment whose bytes are already gone.
func (s *Store) retireSegments(mergeID uint64) {
	lowest := s.lowestLive.Load()
	s.lowestLive.Store(mergeID)

	for id := lowest; id < mergeID; id++ {
		if err := segment.Delete(s.dir, id); err != nil {
			s.log.Errorw("failed to delete obsolete segment", "segment", id, "error", err)
		}
	}
}
