package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"shoplist/internal/state"
)

// FileName is the file a snapshot directory holds.
const FileName = "state.json"

type Snapshotter interface {
	WriteSnapshot(snapshotID string, st state.Store) error
}

type FilesystemSnapshotter struct {
	baseDir string
}

func NewFilesystemSnapshotter(baseDir string) *FilesystemSnapshotter {
	return &FilesystemSnapshotter{baseDir: baseDir}
}

// Path returns where snapshotID is (or would be) stored.
func (f *FilesystemSnapshotter) Path(snapshotID string) string {
	return filepath.Join(f.baseDir, snapshotID, FileName)
}

func (f *FilesystemSnapshotter) WriteSnapshot(snapshotID string, st state.Store) error {
	if snapshotID == "" {
		return fmt.Errorf("empty snapshot id")
	}
	dump := make(map[string]state.Entry)
	if err := st.Range(func(key string, e state.Entry) error {
		dump[key] = e
		return nil
	}); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(f.baseDir, snapshotID), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	// Write to a temp file and rename so a crash never leaves a torn snapshot.
	tmp := f.Path(snapshotID) + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		out.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp, f.Path(snapshotID)); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
func (f *FilesystemSnapshotter) ReadSnapshot(snapshotID string) (map[string]state.Entry, error) {
	data, err := os.ReadFile(f.Path(snapshotID))
	if err != nil {
		return nil, err
	}
	var dump map[string]state.Entry
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	// The file is indented; store values compact.
	for k, e := range dump {
		var buf bytes.Buffer
		if err := json.Compact(&buf, e.Value); err != nil {
			return nil, fmt.Errorf("compact %s: %w", k, err)
		}
		e.Value = buf.Bytes()
		dump[k] = e
	}
	return dump, nil
}
