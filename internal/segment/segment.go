// Package segment manages the on-disk segment files that make up a store's
// append-only log: naming, discovery, and the file-handle plumbing needed to
// open them for writing, reading, or merge-temp staging.
//
// Segment files are named `<id>.data`, where id is a monotonically
// increasing uint64 assigned in the order segments are created. A merge in
// progress writes to `<id>.data.temp`, which is renamed into place only once
// the merge completes successfully, so a crash mid-compaction never leaves a
// partially written file under the final name.
package segment

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/iamNilotpal/kvs/pkg/errors"
)

const (
	// dataSuffix is appended to a segment's numeric id to form its filename.
	dataSuffix = ".data"

	// tempSuffix marks a segment file as merge-in-progress output.
	tempSuffix = ".data.temp"
)

// DataFileName returns the filename a live segment with the given id is
// stored under.
func DataFileName(id uint64) string {
	return strconv.FormatUint(id, 10) + dataSuffix
}

// TempFileName returns the filename a merge in progress writes its output
// segment under before promotion.
func TempFileName(id uint64) string {
	return strconv.FormatUint(id, 10) + tempSuffix
}

// ParseID extracts the numeric segment id from a `<id>.data` filename. It
// returns an error for any name that is not exactly digits followed by the
// data suffix, including temp files.
func ParseID(filename string) (uint64, error) {
	if !strings.HasSuffix(filename, dataSuffix) || strings.HasSuffix(filename, tempSuffix) {
		return 0, errors.NewBadPathError(filename, nil).WithDetail("reason", "not a segment data file")
	}

	idPart := strings.TrimSuffix(filename, dataSuffix)
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		return 0, errors.NewBadPathError(filename, err).WithDetail("reason", "segment id is not numeric")
	}

	return id, nil
}

// ListDataFiles scans dir for live `<id>.data` segment files and returns
// their ids in ascending order. Temp files and any entry that does not
// conform to the naming convention are skipped.
func ListDataFiles(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read segment directory").WithPath(dir)
	}

	ids := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		id, err := ParseID(entry.Name())
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// CleanupTempFiles removes every `*.data.temp` file left behind by a merge
// that was interrupted mid-pass (e.g. by a crash). A stale temp file is
// never promoted and never considered live data, so leaving it in place
// would only waste disk space; deletion failures are logged by the caller
// and are not fatal to opening the store.
func CleanupTempFiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read segment directory").WithPath(dir)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tempSuffix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to remove stale merge temp file").WithPath(path)
		}
	}

	return nil
}

// CreateActive opens (creating if necessary) the segment file for id in dir,
// positioned at the end for append-only writes.
func CreateActive(dir string, id uint64) (*os.File, error) {
	path := filepath.Join(dir, DataFileName(id))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.ClassifyFileOpenError(err, path, DataFileName(id))
	}

	return file, nil
}

// OpenReader opens the segment file for id in dir read-only. Each call
// returns an independent handle, so concurrent readers never contend on a
// shared file offset.
func OpenReader(dir string, id uint64) (*os.File, error) {
	path := filepath.Join(dir, DataFileName(id))

	file, err := os.OpenFile(path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, errors.ClassifyFileOpenError(err, path, DataFileName(id))
	}

	return file, nil
}

// OpenMergeTemp creates the merge-in-progress output file for id in dir,
// truncating any stale temp file left behind by a previous failed merge.
func OpenMergeTemp(dir string, id uint64) (*os.File, error) {
	path := filepath.Join(dir, TempFileName(id))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.ClassifyFileOpenError(err, path, TempFileName(id))
	}

	return file, nil
}

// PromoteTemp atomically renames the merge-in-progress file for id into its
// final `<id>.data` name, making the merged segment live.
func PromoteTemp(dir string, id uint64) error {
	tempPath := filepath.Join(dir, TempFileName(id))
	finalPath := filepath.Join(dir, DataFileName(id))

	if err := os.Rename(tempPath, finalPath); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to promote merge temp file").
			WithFileName(TempFileName(id)).WithPath(tempPath)
	}

	return nil
}

// Delete removes the live segment file for id from dir. Removing a file that
// no longer exists is not an error, since compaction retries are idempotent.
func Delete(dir string, id uint64) error {
	path := filepath.Join(dir, DataFileName(id))

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to delete segment file").
			WithFileName(DataFileName(id)).WithPath(path)
	}

	return nil
}

// Size reports the size in bytes of the live segment file for id in dir.
func Size(dir string, id uint64) (int64, error) {
	path := filepath.Join(dir, DataFileName(id))

	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to stat segment file").
			WithFileName(DataFileName(id)).WithPath(path)
	}

	return info.Size(), nil
}

// SeekEnd positions file at the end and returns the resulting offset, used
// after opening an existing active segment for append so the in-memory size
// tracker starts accurate.
func SeekEnd(file *os.File) (int64, error) {
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to seek to end of segment file").
			WithFileName(file.Name())
	}

	return offset, nil
}
