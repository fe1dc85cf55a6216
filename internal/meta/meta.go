// Package meta manages the directory marker file that binds a data
// directory to the kvs backend: a file named `meta` whose entire contents
// must be the ASCII string "kvs". Its presence (and correctness) is checked
// once, on open, before a store will touch the rest of a directory's
// contents.
package meta

import (
	"os"
	"path/filepath"

	"github.com/iamNilotpal/kvs/pkg/errors"
)

// FileName is the marker file's fixed name within a store's data directory.
const FileName = "meta"

// content is the exact, newline-free marker payload.
const content = "kvs"

// Check inspects dir's meta marker file and reports whether it exists.
//
//   - If no file named `meta` exists, Check returns (false, nil): the
//     directory is eligible for a fresh bootstrap.
//   - If `meta` exists and contains exactly "kvs", Check returns (true, nil):
//     the directory is an existing kvs store.
//   - If `meta` exists as a directory, or exists as a file with any other
//     content, Check returns a BadMetadata error.
func Check(dir string) (bool, error) {
	path := filepath.Join(dir, FileName)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to stat meta file").WithPath(path)
	}

	if info.IsDir() {
		return false, errors.NewBadMetadataError(path, nil).WithDetail("reason", "meta is a directory")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read meta file").WithPath(path)
	}

	if string(data) != content {
		return false, errors.NewBadMetadataError(path, nil).
			WithDetail("reason", "unexpected meta content").
			WithDetail("found", string(data))
	}

	return true, nil
}

// Write creates dir's meta marker file with the required content. It is
// only ever called once, while bootstrapping a fresh store directory.
func Write(dir string) error {
	path := filepath.Join(dir, FileName)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to write meta file").WithPath(path)
	}

	return nil
}
