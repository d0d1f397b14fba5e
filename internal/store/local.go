package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Local is a Store backed by a shared directory (typically inside a synced
// folder such as a file server mount). Atomicity comes from writing to a
// temporary file and renaming it into place.
type Local struct {
	dir string
}

// NewLocal creates a Local store rooted at dir, creating the directory and
// its archive subfolder if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(filepath.Join(dir, ArchiveDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Dir returns the store's root directory.
func (l *Local) Dir() string { return l.dir }

// Put writes the document via a temp file and an atomic rename.
func (l *Local) Put(name string, content []byte) error {
	path := filepath.Join(l.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".plugsync-*")
	if err != nil {
		return fmt.Errorf("failed to create temp document: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write document %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close document %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod document %s: %w", name, err)
	}

	// Readers see either the old or the new document, never a torn write.
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to publish document %s: %w", name, err)
	}
	return nil
}

// Get reads a document, mapping a missing file to ErrNotFound.
func (l *Local) Get(name string) ([]byte, error) {
	content, err := os.ReadFile(filepath.Join(l.dir, filepath.FromSlash(name)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read document %s: %w", name, err)
	}
	return content, nil
}

// GetLatest reads a machine's latest snapshot document.
func (l *Local) GetLatest(machine string) ([]byte, error) {
	return l.Get(LatestName(machine))
}

// ListLatestMachines scans the store root for machine latest pointers.
func (l *Local) ListLatestMachines() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports directory: %w", err)
	}

	var machines []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if machine, ok := MachineFromLatest(entry.Name()); ok {
			machines = append(machines, machine)
		}
	}
	sort.Strings(machines)
	return machines, nil
}

// ListTimestamped returns the machine's historical snapshots from both the
// store root and the archive folder, oldest first.
func (l *Local) ListTimestamped(machine string) ([]TimestampedDoc, error) {
	safe := SafeMachineName(machine)
	var docs []TimestampedDoc

	for _, sub := range []string{"", ArchiveDirName} {
		dir := filepath.Join(l.dir, sub)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			ts, ok := SnapshotTimestamp(name)
			if !ok || snapshotMachine(name) != safe {
				continue
			}
			content, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				continue // racing writer or pruner, skip
			}
			docs = append(docs, TimestampedDoc{Name: name, Timestamp: ts, Content: content})
		}
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Timestamp.Before(docs[j].Timestamp) })
	return docs, nil
}

// Prune deletes the machine's timestamped snapshots older than the cutoff.
func (l *Local) Prune(machine string, olderThan time.Time) (int, error) {
	safe := SafeMachineName(machine)
	deleted := 0

	for _, sub := range []string{"", ArchiveDirName} {
		dir := filepath.Join(l.dir, sub)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return deleted, fmt.Errorf("failed to list %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			ts, ok := SnapshotTimestamp(name)
			if !ok || snapshotMachine(name) != safe {
				continue
			}
			if !ts.Before(olderThan) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
				return deleted, fmt.Errorf("failed to prune %s: %w", name, err)
			}
			deleted++
		}
	}

	return deleted, nil
}
