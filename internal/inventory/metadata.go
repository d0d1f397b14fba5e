package inventory

import (
	"fmt"
	"os"
	"path/filepath"

	"howett.net/plist"
)

// bundleInfo is the subset of Info.plist keys the scanner cares about.
type bundleInfo struct {
	BundleID      string `plist:"CFBundleIdentifier"`
	ShortVersion  string `plist:"CFBundleShortVersionString"`
	BundleVersion string `plist:"CFBundleVersion"`
}

// readBundleInfo parses Contents/Info.plist inside the bundle. A missing
// plist is not an error — bare bundles exist in the wild — and returns an
// empty info. A present but unreadable or malformed plist is an error so the
// caller can mark the record.
func readBundleInfo(bundlePath string) (bundleInfo, error) {
	var info bundleInfo

	plistPath := filepath.Join(bundlePath, "Contents", "Info.plist")
	data, err := os.ReadFile(plistPath)
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return info, fmt.Errorf("failed to read %s: %w", plistPath, err)
	}

	if _, err := plist.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("failed to parse %s: %w", plistPath, err)
	}

	return info, nil
}
