// Package storage holds small on-disk persistence helpers shared by the
// Raft JSON storage and the FIX session-id registry: both need the same
// crash-safe "write then rename" discipline.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// WriteJSONAtomically marshals v and writes it to path via a temp file that
// is fsynced, renamed into place, and whose parent directory is fsynced in
// turn, so a crash never leaves path holding a partial write.
func WriteJSONAtomically(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	//nolint:gosec // tmpName and path are derived from internal storage paths, not user input.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	// Sync the parent directory so the rename itself is durable.
	//nolint:gosec // dir is derived from the configured storage directory under our control.
	dirFile, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer func() { _ = dirFile.Close() }()

	return dirFile.Sync()
}
