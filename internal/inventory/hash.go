package inventory

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// hashBundleBinaries computes a SHA-256 digest over the bundle's executable
// payload (every regular file under Contents/MacOS, in name order, each
// prefixed by its name so renames change the digest). Returns "" without an
// error when the bundle has no executable payload.
func hashBundleBinaries(bundlePath string) (string, error) {
	macosDir := filepath.Join(bundlePath, "Contents", "MacOS")

	entries, err := os.ReadDir(macosDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", macosDir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)

	hasher := sha256.New()
	for _, name := range names {
		hasher.Write([]byte(name))
		if err := hashFileInto(hasher, filepath.Join(macosDir, name)); err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// binaryPayloadSize sums the sizes of the bundle's executable payload files.
// Returns 0 when the payload is absent or unreadable.
func binaryPayloadSize(bundlePath string) int64 {
	macosDir := filepath.Join(bundlePath, "Contents", "MacOS")
	entries, err := os.ReadDir(macosDir)
	if err != nil {
		return 0
	}
	var total int64
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if info, err := entry.Info(); err == nil {
			total += info.Size()
		}
	}
	return total
}

func hashFileInto(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return nil
}
