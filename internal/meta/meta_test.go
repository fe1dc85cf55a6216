package meta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAbsentMarkerIsEligibleForBootstrap(t *testing.T) {
	dir := t.TempDir()

	exists, err := Check(dir)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWriteThenCheckSucceeds(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, Write(dir))

	exists, err := Check(dir)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCheckRejectsWrongContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("not-kvs"), 0644))

	_, err := Check(dir)
	assert.Error(t, err)
}

func TestCheckRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, FileName), 0755))

	_, err := Check(dir)
	assert.Error(t, err)
}
