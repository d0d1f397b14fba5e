// Package inventory builds point-in-time snapshots of the plugin bundles
// installed in one directory on one machine.
package inventory

import "time"

// SchemaVersion is written into every snapshot so future tool versions can
// detect documents produced by older scanners.
const SchemaVersion = 1

// PluginRecord describes one discovered plugin bundle. Records are immutable
// once created; a later scan produces fresh records.
type PluginRecord struct {
	// BundleName is the directory name of the bundle, e.g. "DVerb.aaxplugin".
	BundleName string `json:"bundle_name"`
	// BundleID is the stable identifier from bundle metadata, empty when the
	// metadata carries none.
	BundleID string `json:"bundle_id,omitempty"`
	// ShortVersion is the marketing version ("unknown" when unreadable).
	ShortVersion string `json:"short_version"`
	// BundleVersion is the build version ("unknown" when unreadable).
	BundleVersion string `json:"bundle_version"`
	// SizeBytes is the total size of the bundle's executable payload.
	SizeBytes int64 `json:"size_bytes"`
	// ModTime is the bundle directory's modification time.
	ModTime time.Time `json:"mtime"`
	// BinaryHash is the SHA-256 over the executable payload, empty when
	// hashing is disabled or failed.
	BinaryHash string `json:"binary_hash,omitempty"`
	// MetadataError marks records whose bundle metadata could not be read.
	// Such records still count toward the inventory but never win a version
	// comparison.
	MetadataError bool `json:"metadata_error,omitempty"`
}

// Key returns the identity under which this plugin is compared across
// machines: the bundle identifier when present, the bundle name otherwise.
func (r PluginRecord) Key() string {
	if r.BundleID != "" {
		return r.BundleID
	}
	return r.BundleName
}

// Snapshot is one machine's installed-plugin inventory at a point in time.
// Plugins are ordered by Key so that two scans of an unchanged directory
// produce identical content.
type Snapshot struct {
	SchemaVersion int            `json:"schema_version"`
	MachineName   string         `json:"machine_name"`
	ScanTime      time.Time      `json:"scan_time"`
	RootPath      string         `json:"root_path"`
	Plugins       []PluginRecord `json:"plugins"`
}

// PluginMap indexes the snapshot's records by plugin key. Keys are unique
// within one snapshot; on the pathological case of two bundles claiming the
// same identifier the later one (by bundle name order) wins.
func (s *Snapshot) PluginMap() map[string]PluginRecord {
	m := make(map[string]PluginRecord, len(s.Plugins))
	for _, p := range s.Plugins {
		m[p.Key()] = p
	}
	return m
}
