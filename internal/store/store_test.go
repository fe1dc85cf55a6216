package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/iamNilotpal/kvs/internal/segment"
	"github.com/iamNilotpal/kvs/pkg/errors"
	"github.com/iamNilotpal/kvs/pkg/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T, dir string, configure ...func(*options.Options)) *Store {
	t.Helper()

	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	opts.SegmentOptions.Directory = ""
	opts.CompactThreshold = 1 << 30 // disable auto-compaction noise unless a test opts in
	for _, fn := range configure {
		fn(&opts)
	}

	s, err := Open(context.Background(), &Config{Options: &opts, Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)
	return s
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s := openTestStore(t, t.TempDir())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGet(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("foo", []byte("bar")))

	value, found, err := s.Get("foo")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("bar"), value)
}

func TestGetMissingKeyReportsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, found, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetOverwritesValue(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("foo", []byte("bar")))
	require.NoError(t, s.Set("foo", []byte("baz")))

	value, found, err := s.Get("foo")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("baz"), value)
}

func TestRemoveMissingKeyIsAnError(t *testing.T) {
	s := newTestStore(t)

	err := s.Remove("missing")
	require.Error(t, err)
	assert.True(t, errors.IsIndexError(err))
}

func TestRemoveThenGetIsNotFound(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("foo", []byte("bar")))
	require.NoError(t, s.Remove("foo"))

	_, found, err := s.Get("foo")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCloneSharesDataAcrossHandles(t *testing.T) {
	s := newTestStore(t)

	h := s.Clone()
	defer h.Close()

	require.NoError(t, s.Set("foo", []byte("bar")))

	value, found, err := h.Get("foo")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("bar"), value)
}

func TestReopenReplaysExistingData(t *testing.T) {
	dir := t.TempDir()

	s1 := openTestStore(t, dir)
	for i := range 10 {
		require.NoError(t, s1.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i))))
	}
	require.NoError(t, s1.Remove("key-3"))
	require.NoError(t, s1.Close())

	s2 := openTestStore(t, dir)
	defer s2.Close()

	value, found, err := s2.Get("key-7")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("value-7"), value)

	_, found, err = s2.Get("key-3")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCompactionDoesNotLoseWritesRacingTheMergePass(t *testing.T) {
	s := newTestStore(t)

	for i := range 50 {
		require.NoError(t, s.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i))))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 50; i < 100; i++ {
			_ = s.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i)))
		}
	}()

	require.NoError(t, s.compact())
	<-done

	for i := range 100 {
		value, found, err := s.Get(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		require.True(t, found, "key-%d should survive compaction", i)
		assert.Equal(t, []byte(fmt.Sprintf("value-%d", i)), value)
	}
}

func TestCompactionGarbageBoundInvariant(t *testing.T) {
	s := newTestStore(t)

	for i := range 64 {
		require.NoError(t, s.Set(fmt.Sprintf("key-%d", i), make([]byte, 256)))
	}
	for i := range 64 {
		require.NoError(t, s.Set(fmt.Sprintf("key-%d", i), []byte("small")))
	}
	require.NoError(t, s.compact())

	snapshot, err := s.index.Snapshot()
	require.NoError(t, err)

	var indexBytes int64
	for _, loc := range snapshot {
		indexBytes += int64(loc.Length)
	}

	lowest := s.lowestLive.Load()
	ids, err := segment.ListDataFiles(s.dir)
	require.NoError(t, err)

	var liveBytes int64
	for _, id := range ids {
		if id < lowest {
			continue
		}
		size, err := segment.Size(s.dir, id)
		require.NoError(t, err)
		liveBytes += size
	}

	assert.Equal(t, liveBytes, indexBytes)
}

func TestCompactionPreservesLiveData(t *testing.T) {
	s := newTestStore(t)

	for i := range 5 {
		require.NoError(t, s.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i))))
	}
	require.NoError(t, s.Remove("key-2"))

	require.NoError(t, s.compact())

	value, found, err := s.Get("key-4")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("value-4"), value)

	_, found, err = s.Get("key-2")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCompactionWithEmptyIndexRetiresSegmentsWithoutMergeFile(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("foo", []byte("bar")))
	require.NoError(t, s.Remove("foo"))

	require.NoError(t, s.compact())

	ids, err := segment.ListDataFiles(s.dir)
	require.NoError(t, err)
	assert.Equal(t, []uint64{s.activeID}, ids, "only the new active segment should remain")

	_, found, err := s.Get("foo")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetRetriesWhenSegmentRetiredMidLookup(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("foo", []byte("bar")))

	// Capture the locator the way an in-flight Get would, before compaction
	// migrates the record and deletes its segment.
	stale, ok, err := s.index.Get("foo")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.compact())
	require.Greater(t, s.lowestLive.Load(), stale.FileID)

	// Resolving the stale locator directly fails: its segment is gone.
	_, err = s.readAt("foo", stale)
	require.Error(t, err)
	assert.True(t, isRetiredSegment(err))

	// Get re-reads the index and lands on the migrated copy.
	value, found, err := s.Get("foo")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("bar"), value)
}

func TestGarbageThresholdTriggersAutomaticCompaction(t *testing.T) {
	s := openTestStore(t, t.TempDir(), func(o *options.Options) {
		o.CompactThreshold = 1024
	})
	defer s.Close()

	for i := range 64 {
		require.NoError(t, s.Set(fmt.Sprintf("key-%d", i), make([]byte, 256)))
	}
	for i := range 64 {
		require.NoError(t, s.Set(fmt.Sprintf("key-%d", i), []byte("small")))
	}

	// The compactor runs on its own goroutine; wait for lowestLive to move.
	deadline := time.Now().Add(5 * time.Second)
	for s.lowestLive.Load() <= 1 {
		if time.Now().After(deadline) {
			t.Fatal("compaction never ran despite garbage exceeding the threshold")
		}
		time.Sleep(10 * time.Millisecond)
	}

	for i := range 64 {
		value, found, err := s.Get(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("small"), value)
	}

	ids, err := segment.ListDataFiles(s.dir)
	require.NoError(t, err)
	assert.Less(t, len(ids), 64, "compaction should leave far fewer segment files than keys")
}

func TestDisjointConcurrentWritersAllReadBack(t *testing.T) {
	s := newTestStore(t)

	const perWriter = 200

	var wg sync.WaitGroup
	for w := range 2 {
		wg.Add(1)
		h := s.Clone()
		go func(w int, h *Store) {
			defer wg.Done()
			defer h.Close()
			for i := range perWriter {
				_ = h.Set(fmt.Sprintf("w%d-key-%d", w, i), []byte(fmt.Sprintf("w%d-value-%d", w, i)))
			}
		}(w, h)
	}
	wg.Wait()

	for w := range 2 {
		for i := range perWriter {
			value, found, err := s.Get(fmt.Sprintf("w%d-key-%d", w, i))
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, []byte(fmt.Sprintf("w%d-value-%d", w, i)), value)
		}
	}
}

func TestConcurrentSameKeyWritersAgreeAfterReopen(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)

	const rounds = 500

	var wg sync.WaitGroup
	for _, v := range []string{"a", "b"} {
		wg.Add(1)
		h := s.Clone()
		go func(v string, h *Store) {
			defer wg.Done()
			defer h.Close()
			for range rounds {
				_ = h.Set("k", []byte(v))
			}
		}(v, h)
	}
	wg.Wait()

	final, found, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, []string{"a", "b"}, string(final))

	require.NoError(t, s.Close())

	s2 := openTestStore(t, dir)
	defer s2.Close()

	reopened, found, err := s2.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, final, reopened)
}

func TestReopenSeedsGarbageFromReplay(t *testing.T) {
	dir := t.TempDir()

	s1 := openTestStore(t, dir)
	for range 8 {
		require.NoError(t, s1.Set("churn", make([]byte, 128)))
	}
	require.NoError(t, s1.Close())

	// Seven superseded 128-byte records plus framing crossed the tiny
	// threshold during replay, so the reopened store compacts on its own.
	s2 := openTestStore(t, dir, func(o *options.Options) {
		o.CompactThreshold = 256
	})
	defer s2.Close()

	deadline := time.Now().Add(5 * time.Second)
	for s2.lowestLive.Load() <= 1 {
		if time.Now().After(deadline) {
			t.Fatal("replayed garbage never triggered a compaction pass")
		}
		time.Sleep(10 * time.Millisecond)
	}

	value, found, err := s2.Get("churn")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, value, 128)
}

func TestSizeCeilingRotatesActiveSegmentWithoutCompaction(t *testing.T) {
	s := openTestStore(t, t.TempDir(), func(o *options.Options) {
		o.SegmentOptions.Size = 64
	})
	defer s.Close()

	startID := s.activeID
	for i := range 20 {
		require.NoError(t, s.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i))))
	}

	assert.Greater(t, s.activeID, startID, "active segment should have rotated past the size ceiling")

	for i := range 20 {
		value, found, err := s.Get(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte(fmt.Sprintf("value-%d", i)), value)
	}
}
