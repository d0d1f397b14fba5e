package app

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fathom-audio/plugsync/internal/config"
	"github.com/fathom-audio/plugsync/internal/diff"
	"github.com/fathom-audio/plugsync/internal/inventory"
	"github.com/fathom-audio/plugsync/internal/store"
)

// testEnv is one machine's sandbox: a plugin folder, a report store and a
// config file wired into the package-level --config flag.
type testEnv struct {
	plugins string
	reports string
}

func newTestEnv(t *testing.T, machine string) *testEnv {
	t.Helper()

	base := t.TempDir()
	env := &testEnv{
		plugins: filepath.Join(base, "plugins"),
		reports: filepath.Join(base, "reports"),
	}
	if err := os.MkdirAll(env.plugins, 0o755); err != nil {
		t.Fatal(err)
	}

	// Hash cache, PID file and daemon log land under a throwaway HOME.
	t.Setenv("HOME", filepath.Join(base, "home"))

	cfg := config.Default()
	cfg.MachineName = machine
	cfg.PluginsPath = env.plugins
	cfg.ReportsBackend = config.BackendLocal
	cfg.ReportsPath = env.reports
	cfg.HashBinaries = false // hashing is covered by inventory tests

	path := filepath.Join(base, "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })

	return env
}

// writeBundle drops a minimal plugin bundle into the test plugin folder.
func (e *testEnv) writeBundle(t *testing.T, name, id, version string) {
	t.Helper()

	bundle := filepath.Join(e.plugins, name)
	if err := os.MkdirAll(filepath.Join(bundle, "Contents", "MacOS"), 0o755); err != nil {
		t.Fatal(err)
	}

	plist := "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<plist version=\"1.0\">\n<dict>\n" +
		fmt.Sprintf("<key>CFBundleIdentifier</key><string>%s</string>\n", id) +
		fmt.Sprintf("<key>CFBundleShortVersionString</key><string>%s</string>\n", version) +
		"</dict>\n</plist>\n"
	if err := os.WriteFile(filepath.Join(bundle, "Contents", "Info.plist"), []byte(plist), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanPublishesSnapshotAndDerivedDocs(t *testing.T) {
	env := newTestEnv(t, "StudioA")
	env.writeBundle(t, "EQ.aaxplugin", "com.acme.eq", "1.2.0")

	scanQuiet = true
	defer func() { scanQuiet = false }()
	if err := runScan(scanCmd, nil); err != nil {
		t.Fatalf("runScan() error = %v", err)
	}

	// Latest pointer, archived history and all three derived documents.
	wantFiles := []string{
		"StudioA__latest.json",
		store.DiffLatestName,
		store.SummaryLatestName,
		store.UpdatesLatestName("StudioA"),
	}
	for _, name := range wantFiles {
		if _, err := os.Stat(filepath.Join(env.reports, name)); err != nil {
			t.Errorf("missing document %s: %v", name, err)
		}
	}

	archive, err := os.ReadDir(filepath.Join(env.reports, store.ArchiveDirName))
	if err != nil || len(archive) != 1 {
		t.Errorf("expected 1 archived snapshot, got %d (err %v)", len(archive), err)
	}

	content, err := os.ReadFile(filepath.Join(env.reports, "StudioA__latest.json"))
	if err != nil {
		t.Fatal(err)
	}
	var snap inventory.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		t.Fatalf("latest snapshot is not valid JSON: %v", err)
	}
	if len(snap.Plugins) != 1 || snap.Plugins[0].BundleID != "com.acme.eq" {
		t.Errorf("unexpected snapshot contents: %+v", snap.Plugins)
	}
}

func TestScanThenDiffSeesPeerUpdates(t *testing.T) {
	env := newTestEnv(t, "StudioA")
	env.writeBundle(t, "EQ.aaxplugin", "com.acme.eq", "1.2.0")

	scanQuiet = true
	defer func() { scanQuiet = false }()
	if err := runScan(scanCmd, nil); err != nil {
		t.Fatal(err)
	}

	// A peer publishes a newer version directly into the shared store.
	st, err := store.NewLocal(env.reports)
	if err != nil {
		t.Fatal(err)
	}
	peer := &inventory.Snapshot{
		SchemaVersion: inventory.SchemaVersion,
		MachineName:   "StudioB",
		ScanTime:      mustLoadScanTime(t, env).Add(time.Second),
		RootPath:      "/plugins",
		Plugins: []inventory.PluginRecord{
			{BundleName: "EQ.aaxplugin", BundleID: "com.acme.eq", ShortVersion: "1.3.0", BundleVersion: "unknown"},
		},
	}
	if err := store.WriteSnapshot(st, peer); err != nil {
		t.Fatal(err)
	}

	if err := runDiff(diffCmd, nil); err != nil {
		t.Fatalf("runDiff() error = %v", err)
	}

	content, err := os.ReadFile(filepath.Join(env.reports, store.UpdatesLatestName("StudioA")))
	if err != nil {
		t.Fatal(err)
	}
	var list diff.UpdateList
	if err := json.Unmarshal(content, &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Updates) != 1 || list.Updates[0].Reason != diff.ReasonOutdated {
		t.Errorf("expected one outdated entry for StudioA, got %+v", list.Updates)
	}
	if list.Updates[0].SourceMachine != "StudioB" {
		t.Errorf("SourceMachine = %q, want StudioB", list.Updates[0].SourceMachine)
	}
}

func TestScanIsIdempotentOnStore(t *testing.T) {
	env := newTestEnv(t, "StudioA")
	env.writeBundle(t, "EQ.aaxplugin", "com.acme.eq", "1.2.0")

	scanQuiet = true
	defer func() { scanQuiet = false }()
	if err := runScan(scanCmd, nil); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(filepath.Join(env.reports, store.DiffLatestName))
	if err != nil {
		t.Fatal(err)
	}

	// Re-deriving without any snapshot change rewrites identical bytes.
	if err := runDiff(diffCmd, nil); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(filepath.Join(env.reports, store.DiffLatestName))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("diff document changed without any snapshot change")
	}
}

func TestStatusBeforeFirstScan(t *testing.T) {
	newTestEnv(t, "StudioA")

	// Nothing published yet; status reports that instead of failing.
	if err := runStatus(statusCmd, nil); err != nil {
		t.Errorf("runStatus() error = %v", err)
	}
}

func TestStatusHonorsPIDFileFlag(t *testing.T) {
	newTestEnv(t, "StudioA")

	// A daemon started with a custom PID file. Our own PID stands in for a
	// live daemon process.
	pidFile := filepath.Join(t.TempDir(), "custom.pid")
	if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := daemonState(pidFile); got != "running" {
		t.Errorf("daemonState(custom pid file) = %q, want running", got)
	}

	statusPIDFile = pidFile
	defer func() { statusPIDFile = "" }()
	if err := runStatus(statusCmd, nil); err != nil {
		t.Errorf("runStatus() error = %v", err)
	}
}

func TestScanPrunesStaleHashEntries(t *testing.T) {
	env := newTestEnv(t, "StudioA")
	env.writeBundle(t, "EQ.aaxplugin", "com.acme.eq", "1.2.0")

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	cfg.HashBinaries = true
	if err := cfg.Save(configPath); err != nil {
		t.Fatal(err)
	}

	scanQuiet = true
	defer func() { scanQuiet = false }()
	if err := runScan(scanCmd, nil); err != nil {
		t.Fatal(err)
	}

	// Plant a cache entry for a bundle removed long ago.
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}
	dbPath := filepath.Join(home, ".plugsync", "hashes.db")
	gone := filepath.Join(env.plugins, "Gone.aaxplugin")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(
		`INSERT OR REPLACE INTO binary_hashes (bundle_path, size_bytes, mtime_unix, hash, updated_at)
		 VALUES (?, 1, 1, 'deadbeef', '2020-01-01T00:00:00Z')`, gone); err != nil {
		db.Close()
		t.Fatal(err)
	}
	db.Close()

	// The next scan ages it out.
	if err := runScan(scanCmd, nil); err != nil {
		t.Fatal(err)
	}

	db, err = sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM binary_hashes WHERE bundle_path = ?`, gone).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("stale hash entry survived the scan")
	}
}

func TestSetupWritesAndProtectsConfig(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))

	old := configPath
	configPath = filepath.Join(base, "config.yaml")
	defer func() { configPath = old }()

	setupMachine = "StudioA"
	setupPlugins = "/plugins"
	setupReports = filepath.Join(base, "reports")
	setupBackend = config.BackendLocal
	setupForce = false
	defer func() { setupMachine, setupPlugins, setupReports = "", "", "" }()

	if err := runSetup(setupCmd, nil); err != nil {
		t.Fatalf("runSetup() error = %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config not loadable after setup: %v", err)
	}
	if cfg.MachineName != "StudioA" {
		t.Errorf("MachineName = %q", cfg.MachineName)
	}

	// A second setup without --force must refuse.
	if err := runSetup(setupCmd, nil); err == nil {
		t.Error("expected an error overwriting config without --force")
	} else if !strings.Contains(err.Error(), "--force") {
		t.Errorf("error should mention --force: %v", err)
	}

	setupForce = true
	defer func() { setupForce = false }()
	if err := runSetup(setupCmd, nil); err != nil {
		t.Errorf("runSetup() with --force error = %v", err)
	}
}

func TestPruneRequiresRetention(t *testing.T) {
	env := newTestEnv(t, "StudioA")
	_ = env

	// Disable retention in the config.
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	cfg.PruneDays = 0
	if err := cfg.Save(configPath); err != nil {
		t.Fatal(err)
	}

	pruneDays = 0
	if err := runPrune(pruneCmd, nil); err == nil {
		t.Error("expected an error when retention is disabled")
	}

	pruneDays = 7
	defer func() { pruneDays = 0 }()
	if err := runPrune(pruneCmd, nil); err != nil {
		t.Errorf("runPrune() with --days error = %v", err)
	}
}

func TestResolveConfigPath(t *testing.T) {
	old := configPath
	defer func() { configPath = old }()

	configPath = "/tmp/custom.yaml"
	path, err := resolveConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if path != "/tmp/custom.yaml" {
		t.Errorf("resolveConfigPath() = %q", path)
	}

	configPath = ""
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	path, err = resolveConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if path != "/tmp/xdg/plugsync/config.yaml" {
		t.Errorf("resolveConfigPath() default = %q", path)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	want := []string{"setup", "scan", "diff", "status", "daemon", "prune"}
	for _, name := range want {
		found := false
		for _, sub := range RootCmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

// mustLoadScanTime reads this machine's published scan time so a peer
// snapshot can be stamped relative to it.
func mustLoadScanTime(t *testing.T, env *testEnv) time.Time {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(env.reports, "StudioA__latest.json"))
	if err != nil {
		t.Fatal(err)
	}
	var snap inventory.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		t.Fatal(err)
	}
	return snap.ScanTime
}
