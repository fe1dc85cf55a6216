package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New(&Config{Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)
	return idx
}

func TestInsertGet(t *testing.T) {
	idx := newTestIndex(t)

	loc := Locator{FileID: 1, Offset: 10, Length: 20}
	_, had, err := idx.Insert("foo", loc)
	require.NoError(t, err)
	assert.False(t, had)

	got, ok, err := idx.Get("foo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, loc, got)
}

func TestInsertReturnsDisplacedLocator(t *testing.T) {
	idx := newTestIndex(t)

	first := Locator{FileID: 1, Offset: 0, Length: 20}
	_, _, err := idx.Insert("foo", first)
	require.NoError(t, err)

	prev, had, err := idx.Insert("foo", Locator{FileID: 1, Offset: 20, Length: 24})
	require.NoError(t, err)
	require.True(t, had)
	assert.Equal(t, first, prev)
}

func TestGetMissingKey(t *testing.T) {
	idx := newTestIndex(t)

	_, ok, err := idx.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveReturnsHeldLocator(t *testing.T) {
	idx := newTestIndex(t)

	loc := Locator{FileID: 1, Offset: 8, Length: 16}
	_, _, err := idx.Insert("foo", loc)
	require.NoError(t, err)

	prev, removed, err := idx.Remove("foo")
	require.NoError(t, err)
	require.True(t, removed)
	assert.Equal(t, loc, prev)

	_, removed, err = idx.Remove("foo")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSnapshotIsACopy(t *testing.T) {
	idx := newTestIndex(t)
	_, _, err := idx.Insert("foo", Locator{FileID: 1})
	require.NoError(t, err)

	snap, err := idx.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap, 1)

	_, _, err = idx.Insert("bar", Locator{FileID: 2})
	require.NoError(t, err)
	assert.Len(t, snap, 1)
}

func TestCloseRejectsFurtherUse(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Close())

	_, _, err := idx.Get("foo")
	assert.ErrorIs(t, err, ErrIndexClosed)

	assert.ErrorIs(t, idx.Close(), ErrIndexClosed)
}
