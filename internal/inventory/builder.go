package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// BundleSuffix is the directory-name suffix that marks an entry as a plugin
// bundle. Anything else at the top level of the plugin directory is ignored.
const BundleSuffix = ".aaxplugin"

// HashCache memoizes binary digests so unchanged bundles are not re-hashed on
// every scan. Implementations key on (path, size, mtime); any of the three
// changing invalidates the entry.
type HashCache interface {
	Lookup(bundlePath string, sizeBytes int64, modTime time.Time) (string, bool)
	Store(bundlePath string, sizeBytes int64, modTime time.Time, hash string) error
}

// Options configures a Builder. MachineName and RootPath are required; Cache
// is consulted only when HashBinaries is set.
type Options struct {
	MachineName  string
	RootPath     string
	HashBinaries bool
	Cache        HashCache
}

// Builder scans one plugin directory and produces Snapshots.
type Builder struct {
	opts Options
}

// New creates a Builder for the given machine and plugin directory.
func New(opts Options) *Builder {
	return &Builder{opts: opts}
}

// Build scans the plugin directory and returns a Snapshot.
//
// The scan never fails: an unreadable root yields an empty snapshot, an
// unreadable bundle entry is skipped, and a bundle with corrupt metadata is
// recorded with its version marked unknown. Records are ordered by plugin key
// so two scans of an unchanged directory produce identical content.
func (b *Builder) Build() *Snapshot {
	snap := &Snapshot{
		SchemaVersion: SchemaVersion,
		MachineName:   b.opts.MachineName,
		ScanTime:      time.Now().UTC().Truncate(time.Second),
		RootPath:      b.opts.RootPath,
		Plugins:       []PluginRecord{},
	}

	entries, err := os.ReadDir(b.opts.RootPath)
	if err != nil {
		// Directory missing or unreadable — the scan still "happened",
		// it just found nothing.
		return snap
	}

	for _, entry := range entries {
		if !isBundleDir(b.opts.RootPath, entry) {
			continue
		}
		snap.Plugins = append(snap.Plugins, b.scanBundle(entry.Name()))
	}

	sort.Slice(snap.Plugins, func(i, j int) bool {
		a, b := snap.Plugins[i].Key(), snap.Plugins[j].Key()
		la, lb := strings.ToLower(a), strings.ToLower(b)
		if la != lb {
			return la < lb
		}
		return a < b
	})

	return snap
}

// scanBundle extracts one bundle's record. Metadata failures degrade to an
// unknown-version record, hashing failures degrade to no hash.
func (b *Builder) scanBundle(name string) PluginRecord {
	bundlePath := filepath.Join(b.opts.RootPath, name)

	record := PluginRecord{
		BundleName:    name,
		ShortVersion:  "unknown",
		BundleVersion: "unknown",
	}

	info, err := readBundleInfo(bundlePath)
	if err != nil {
		record.MetadataError = true
	} else {
		record.BundleID = info.BundleID
		if info.ShortVersion != "" {
			record.ShortVersion = info.ShortVersion
		}
		if info.BundleVersion != "" {
			record.BundleVersion = info.BundleVersion
		}
	}

	if stat, err := os.Stat(bundlePath); err == nil {
		record.ModTime = stat.ModTime().UTC().Truncate(time.Second)
	}
	record.SizeBytes = binaryPayloadSize(bundlePath)

	if b.opts.HashBinaries {
		record.BinaryHash = b.hashWithCache(bundlePath, record.SizeBytes, record.ModTime)
	}

	return record
}

// hashWithCache returns the bundle's binary digest, consulting the cache
// first. Any failure degrades to an empty hash.
func (b *Builder) hashWithCache(bundlePath string, sizeBytes int64, modTime time.Time) string {
	if b.opts.Cache != nil {
		if hash, ok := b.opts.Cache.Lookup(bundlePath, sizeBytes, modTime); ok {
			return hash
		}
	}

	hash, err := hashBundleBinaries(bundlePath)
	if err != nil || hash == "" {
		return ""
	}

	if b.opts.Cache != nil {
		if err := b.opts.Cache.Store(bundlePath, sizeBytes, modTime, hash); err != nil {
			// Cache failures must never fail the scan.
			fmt.Fprintf(os.Stderr, "inventory: hash cache store failed for %s: %v\n", bundlePath, err)
		}
	}

	return hash
}

// isBundleDir reports whether the directory entry is a plugin bundle,
// resolving symlinks so linked bundles are still inventoried.
func isBundleDir(root string, entry os.DirEntry) bool {
	if !strings.HasSuffix(entry.Name(), BundleSuffix) {
		return false
	}
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink != 0 {
		if stat, err := os.Stat(filepath.Join(root, entry.Name())); err == nil {
			return stat.IsDir()
		}
	}
	return false
}
