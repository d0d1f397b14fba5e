package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fathom-audio/plugsync/internal/config"
	"github.com/fathom-audio/plugsync/internal/diff"
	"github.com/fathom-audio/plugsync/internal/hashcache"
	"github.com/fathom-audio/plugsync/internal/inventory"
	"github.com/fathom-audio/plugsync/internal/store"
)

// loadConfig reads the config file from the --config flag or the default
// location.
func loadConfig() (*config.Config, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	return config.Load(path)
}

// openStore builds the report store for the configured backend.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.ReportsBackend {
	case config.BackendRemote:
		return store.NewRemote(cfg.RemoteEndpoint, cfg.RemoteToken), nil
	default:
		return store.NewLocal(cfg.ReportsPath)
	}
}

// plugsyncDir returns ~/.plugsync, creating it if needed. It holds the hash
// cache, PID file and daemon log.
func plugsyncDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".plugsync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create plugsync directory: %w", err)
	}
	return dir, nil
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	dir, err := plugsyncDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.pid"), nil
}

// getDefaultLogFile returns the default log file path
func getDefaultLogFile() (string, error) {
	dir, err := plugsyncDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.log"), nil
}

// openHashCache opens the binary-hash cache, or returns nil when the cache
// cannot be opened; hashing still works, just without memoization.
func openHashCache() *hashcache.Cache {
	dir, err := plugsyncDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: hash cache unavailable: %v\n", err)
		return nil
	}
	cache, err := hashcache.New(filepath.Join(dir, "hashes.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: hash cache unavailable: %v\n", err)
		return nil
	}
	return cache
}

// buildSnapshot scans the plugin folder and produces this machine's snapshot.
func buildSnapshot(cfg *config.Config) *inventory.Snapshot {
	var cache *hashcache.Cache
	if cfg.HashBinaries {
		cache = openHashCache()
	}

	opts := inventory.Options{
		MachineName:  cfg.MachineName,
		RootPath:     cfg.PluginsPath,
		HashBinaries: cfg.HashBinaries,
	}
	if cache != nil {
		opts.Cache = cache
	}
	snap := inventory.New(opts).Build()

	if cache != nil {
		// Every scan refreshes the entries for bundles that still exist, so
		// anything unrefreshed for a whole retention window belongs to a
		// removed bundle.
		if _, err := cache.PruneStale(time.Now().UTC().Add(-hashRetention(cfg))); err != nil {
			fmt.Fprintf(os.Stderr, "warning: hash cache prune failed: %v\n", err)
		}
		cache.Close()
	}
	return snap
}

// hashRetention is how long an unrefreshed hash cache entry survives. It
// follows the snapshot retention window, with the default as a floor when
// retention is disabled.
func hashRetention(cfg *config.Config) time.Duration {
	days := cfg.PruneDays
	if days <= 0 {
		days = config.DefaultPruneDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// runScanCycle is the full pipeline one scan performs: publish this machine's
// snapshot, prune its history, rebuild the fleet view and rewrite the derived
// documents. Derived documents are written for every machine in the fleet so
// the store state is a pure function of the latest snapshots.
func runScanCycle(cfg *config.Config, st store.Store) (*diff.Result, error) {
	snap := buildSnapshot(cfg)
	if err := store.WriteSnapshot(st, snap); err != nil {
		return nil, fmt.Errorf("failed to publish snapshot: %w", err)
	}

	if cfg.PruneDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -cfg.PruneDays)
		if _, err := st.Prune(cfg.MachineName, cutoff); err != nil {
			// Retention is housekeeping; a failed prune never blocks the scan.
			fmt.Fprintf(os.Stderr, "warning: prune failed: %v\n", err)
		}
	}

	return runDiffCycle(st)
}

// loadOwnSnapshot reads this machine's latest snapshot back from the store.
func loadOwnSnapshot(cfg *config.Config, st store.Store) (*inventory.Snapshot, error) {
	content, err := st.GetLatest(cfg.MachineName)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for %s: %w", cfg.MachineName, err)
	}
	var snap inventory.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", cfg.MachineName, err)
	}
	return &snap, nil
}

// runDiffCycle rebuilds the fleet view from the store and rewrites the
// derived documents.
func runDiffCycle(st store.Store) (*diff.Result, error) {
	fleet, err := store.LoadFleet(st)
	if err != nil {
		return nil, err
	}

	result := diff.Compute(fleet)
	if err := writeDerivedDocs(st, result); err != nil {
		return nil, err
	}
	return result, nil
}

// writeDerivedDocs persists the diff, summary and every machine's update
// list. An unchanged fleet produces byte-identical documents.
func writeDerivedDocs(st store.Store, result *diff.Result) error {
	diffDoc, err := store.EncodeDocument(result.Diff)
	if err != nil {
		return err
	}
	if err := st.Put(store.DiffLatestName, diffDoc); err != nil {
		return fmt.Errorf("failed to write diff document: %w", err)
	}

	summaryDoc, err := store.EncodeDocument(result.Summary)
	if err != nil {
		return err
	}
	if err := st.Put(store.SummaryLatestName, summaryDoc); err != nil {
		return fmt.Errorf("failed to write summary document: %w", err)
	}

	for machine, list := range result.Updates {
		doc, err := store.EncodeDocument(list)
		if err != nil {
			return err
		}
		if err := st.Put(store.UpdatesLatestName(machine), doc); err != nil {
			return fmt.Errorf("failed to write update list for %s: %w", machine, err)
		}
	}
	return nil
}
