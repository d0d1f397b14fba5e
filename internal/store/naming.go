package store

import (
	"strings"
	"time"
)

// Document naming conventions shared by every backend. A machine's snapshot
// history lives under timestamped names in the archive folder while a mutable
// "__latest" alias in the store root always points at the newest one. Derived
// documents (diff, summary, per-machine update lists) only ever exist as
// "__latest" names and are overwritten each run.
const (
	// ArchiveDirName holds timestamped snapshots so the store root stays
	// readable for humans browsing the shared folder.
	ArchiveDirName = "old scans"

	// DiffLatestName is the fleet-wide diff document.
	DiffLatestName = "diff__latest.json"

	// SummaryLatestName is the fleet-wide update summary document.
	SummaryLatestName = "summary__latest.json"

	latestSuffix    = "__latest.json"
	updatesPrefix   = "updates__"
	timestampLayout = "20060102-150405"
)

// SafeMachineName strips path separators from a machine name so it can be
// embedded in document names.
func SafeMachineName(name string) string {
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown-machine"
	}
	return name
}

// LatestName returns the latest-pointer document name for a machine.
func LatestName(machine string) string {
	return SafeMachineName(machine) + latestSuffix
}

// SnapshotName returns the immutable timestamped document name for a
// machine's snapshot taken at ts.
func SnapshotName(machine string, ts time.Time) string {
	return SafeMachineName(machine) + "__" + ts.UTC().Format(timestampLayout) + ".json"
}

// UpdatesLatestName returns the per-machine update-list document name.
func UpdatesLatestName(machine string) string {
	return updatesPrefix + SafeMachineName(machine) + latestSuffix
}

// MachineFromLatest extracts the machine name from a latest-pointer document
// name. Derived documents (diff, summary, updates) are not machine latests.
func MachineFromLatest(name string) (string, bool) {
	if !strings.HasSuffix(name, latestSuffix) {
		return "", false
	}
	if name == DiffLatestName || name == SummaryLatestName {
		return "", false
	}
	if strings.HasPrefix(name, updatesPrefix) {
		return "", false
	}
	machine := strings.TrimSuffix(name, latestSuffix)
	if machine == "" {
		return "", false
	}
	return machine, true
}

// IsTimestampedSnapshot reports whether a document name is an immutable
// machine snapshot (as opposed to a latest pointer or derived document).
func IsTimestampedSnapshot(name string) bool {
	if !strings.HasSuffix(name, ".json") {
		return false
	}
	if strings.HasSuffix(name, latestSuffix) {
		return false
	}
	if strings.HasPrefix(name, "diff__") || strings.HasPrefix(name, "summary__") || strings.HasPrefix(name, updatesPrefix) {
		return false
	}
	return strings.Contains(name, "__")
}

// SnapshotTimestamp parses the timestamp out of a timestamped snapshot name.
func SnapshotTimestamp(name string) (time.Time, bool) {
	if !IsTimestampedSnapshot(name) {
		return time.Time{}, false
	}
	idx := strings.LastIndex(name, "__")
	raw := strings.TrimSuffix(name[idx+2:], ".json")
	ts, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// snapshotMachine extracts the machine portion of a timestamped snapshot name.
func snapshotMachine(name string) string {
	idx := strings.LastIndex(name, "__")
	if idx < 0 {
		return ""
	}
	return name[:idx]
}
