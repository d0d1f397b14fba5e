package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// writeBundle creates a plugin bundle directory with an Info.plist and an
// executable payload. Pass an empty id to omit CFBundleIdentifier.
func writeBundle(t *testing.T, root, name, id, shortVersion, bundleVersion string, payload []byte) string {
	t.Helper()

	bundlePath := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Join(bundlePath, "Contents", "MacOS"), 0o755); err != nil {
		t.Fatalf("Failed to create bundle dirs: %v", err)
	}

	plistBody := "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n" +
		"<plist version=\"1.0\">\n<dict>\n"
	if id != "" {
		plistBody += fmt.Sprintf("<key>CFBundleIdentifier</key><string>%s</string>\n", id)
	}
	if shortVersion != "" {
		plistBody += fmt.Sprintf("<key>CFBundleShortVersionString</key><string>%s</string>\n", shortVersion)
	}
	if bundleVersion != "" {
		plistBody += fmt.Sprintf("<key>CFBundleVersion</key><string>%s</string>\n", bundleVersion)
	}
	plistBody += "</dict>\n</plist>\n"

	if err := os.WriteFile(filepath.Join(bundlePath, "Contents", "Info.plist"), []byte(plistBody), 0o644); err != nil {
		t.Fatalf("Failed to write Info.plist: %v", err)
	}

	if payload != nil {
		if err := os.WriteFile(filepath.Join(bundlePath, "Contents", "MacOS", "plugin"), payload, 0o755); err != nil {
			t.Fatalf("Failed to write payload: %v", err)
		}
	}

	return bundlePath
}

func TestBuildScansBundles(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "DVerb.aaxplugin", "com.acme.dverb", "1.2.0", "4512", []byte("dverb binary"))
	writeBundle(t, root, "Comp.aaxplugin", "com.acme.comp", "3.0.1", "", []byte("comp binary"))

	// Non-bundle entries are skipped silently.
	if err := os.WriteFile(filepath.Join(root, "README.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("Failed to write stray file: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "Presets"), 0o755); err != nil {
		t.Fatalf("Failed to create stray dir: %v", err)
	}

	snap := New(Options{MachineName: "studio-a", RootPath: root}).Build()

	if snap.MachineName != "studio-a" {
		t.Errorf("MachineName = %q, want studio-a", snap.MachineName)
	}
	if snap.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", snap.SchemaVersion, SchemaVersion)
	}
	if len(snap.Plugins) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(snap.Plugins))
	}

	// Ordered by key: com.acme.comp before com.acme.dverb.
	if snap.Plugins[0].Key() != "com.acme.comp" || snap.Plugins[1].Key() != "com.acme.dverb" {
		t.Errorf("Unexpected key order: %q, %q", snap.Plugins[0].Key(), snap.Plugins[1].Key())
	}

	dverb := snap.Plugins[1]
	if dverb.ShortVersion != "1.2.0" || dverb.BundleVersion != "4512" {
		t.Errorf("DVerb versions = %q/%q", dverb.ShortVersion, dverb.BundleVersion)
	}
	if dverb.SizeBytes != int64(len("dverb binary")) {
		t.Errorf("DVerb SizeBytes = %d", dverb.SizeBytes)
	}
	if dverb.BinaryHash != "" {
		t.Errorf("Hashing disabled but got hash %q", dverb.BinaryHash)
	}

	comp := snap.Plugins[0]
	if comp.BundleVersion != "unknown" {
		t.Errorf("Missing bundle version should read unknown, got %q", comp.BundleVersion)
	}
}

func TestBuildCorruptMetadataDegrades(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "Good1.aaxplugin", "com.acme.one", "1.0.0", "100", []byte("one"))
	writeBundle(t, root, "Good2.aaxplugin", "com.acme.two", "2.0.0", "200", []byte("two"))

	// Corrupt bundle: garbage Info.plist.
	badPath := filepath.Join(root, "Broken.aaxplugin", "Contents")
	if err := os.MkdirAll(badPath, 0o755); err != nil {
		t.Fatalf("Failed to create broken bundle: %v", err)
	}
	if err := os.WriteFile(filepath.Join(badPath, "Info.plist"), []byte("not a plist"), 0o644); err != nil {
		t.Fatalf("Failed to write broken plist: %v", err)
	}

	snap := New(Options{MachineName: "studio-a", RootPath: root}).Build()

	if len(snap.Plugins) != 3 {
		t.Fatalf("Expected 3 records (scan must not abort), got %d", len(snap.Plugins))
	}

	var broken *PluginRecord
	for i := range snap.Plugins {
		if snap.Plugins[i].BundleName == "Broken.aaxplugin" {
			broken = &snap.Plugins[i]
		}
	}
	if broken == nil {
		t.Fatal("Broken bundle missing from snapshot")
	}
	if !broken.MetadataError {
		t.Error("Broken bundle should be flagged MetadataError")
	}
	if broken.ShortVersion != "unknown" || broken.BundleVersion != "unknown" {
		t.Errorf("Broken bundle versions = %q/%q, want unknown", broken.ShortVersion, broken.BundleVersion)
	}
}

func TestBuildMissingRootYieldsEmptySnapshot(t *testing.T) {
	snap := New(Options{
		MachineName: "studio-a",
		RootPath:    filepath.Join(t.TempDir(), "does-not-exist"),
	}).Build()

	if snap == nil {
		t.Fatal("Build returned nil")
	}
	if len(snap.Plugins) != 0 {
		t.Errorf("Expected empty snapshot, got %d records", len(snap.Plugins))
	}
	if snap.MachineName != "studio-a" {
		t.Errorf("MachineName = %q", snap.MachineName)
	}
}

func TestBuildDeterministic(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "B.aaxplugin", "com.acme.b", "1.0.0", "1", []byte("b"))
	writeBundle(t, root, "A.aaxplugin", "com.acme.a", "2.0.0", "2", []byte("a"))

	builder := New(Options{MachineName: "studio-a", RootPath: root, HashBinaries: true})
	first := builder.Build()
	second := builder.Build()

	// Identical directory contents must yield identical records.
	if !reflect.DeepEqual(first.Plugins, second.Plugins) {
		t.Errorf("Re-scan of unchanged directory differs:\n%+v\n%+v", first.Plugins, second.Plugins)
	}
}

// fakeCache records lookups and stores for cache-interaction tests.
type fakeCache struct {
	entries map[string]string
	lookups int
	stores  int
}

func (c *fakeCache) key(path string, size int64, mtime time.Time) string {
	return fmt.Sprintf("%s|%d|%d", path, size, mtime.Unix())
}

func (c *fakeCache) Lookup(path string, size int64, mtime time.Time) (string, bool) {
	c.lookups++
	hash, ok := c.entries[c.key(path, size, mtime)]
	return hash, ok
}

func (c *fakeCache) Store(path string, size int64, mtime time.Time, hash string) error {
	c.stores++
	c.entries[c.key(path, size, mtime)] = hash
	return nil
}

func TestBuildUsesHashCache(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "DVerb.aaxplugin", "com.acme.dverb", "1.2.0", "4512", []byte("payload"))

	cache := &fakeCache{entries: make(map[string]string)}
	builder := New(Options{MachineName: "studio-a", RootPath: root, HashBinaries: true, Cache: cache})

	first := builder.Build()
	if first.Plugins[0].BinaryHash == "" {
		t.Fatal("Expected a binary hash")
	}
	if cache.stores != 1 {
		t.Errorf("Expected 1 cache store, got %d", cache.stores)
	}

	second := builder.Build()
	if cache.stores != 1 {
		t.Errorf("Unchanged bundle was re-hashed (%d stores)", cache.stores)
	}
	if second.Plugins[0].BinaryHash != first.Plugins[0].BinaryHash {
		t.Error("Cached hash differs from computed hash")
	}
}
