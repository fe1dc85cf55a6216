package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataFileNameRoundTrip(t *testing.T) {
	name := DataFileName(42)
	assert.Equal(t, "42.data", name)

	id, err := ParseID(name)
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
}

func TestParseIDRejectsTempFile(t *testing.T) {
	_, err := ParseID(TempFileName(7))
	assert.Error(t, err)
}

func TestParseIDRejectsGarbage(t *testing.T) {
	_, err := ParseID("not-a-segment")
	assert.Error(t, err)
}

func TestListDataFilesOrdersAscendingAndSkipsTemp(t *testing.T) {
	dir := t.TempDir()

	for _, id := range []uint64{3, 1, 2} {
		f, err := CreateActive(dir, id)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	tmp, err := OpenMergeTemp(dir, 99)
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	ids, err := ListDataFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, ids)
}

func TestPromoteTempMakesSegmentReadable(t *testing.T) {
	dir := t.TempDir()

	tmp, err := OpenMergeTemp(dir, 5)
	require.NoError(t, err)
	_, err = tmp.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	require.NoError(t, PromoteTemp(dir, 5))

	reader, err := OpenReader(dir, 5)
	require.NoError(t, err)
	defer reader.Close()

	size, err := Size(dir, 5)
	require.NoError(t, err)
	assert.EqualValues(t, len("payload"), size)
}

func TestDeleteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, Delete(dir, 123))
}

func TestCleanupTempFilesRemovesStaleMergeOutputOnly(t *testing.T) {
	dir := t.TempDir()

	live, err := CreateActive(dir, 1)
	require.NoError(t, err)
	require.NoError(t, live.Close())

	tmp, err := OpenMergeTemp(dir, 2)
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	require.NoError(t, CleanupTempFiles(dir))

	ids, err := ListDataFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids)

	_, err = os.Stat(filepath.Join(dir, TempFileName(2)))
	assert.True(t, os.IsNotExist(err))
}
