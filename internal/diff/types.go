// Package diff computes the fleet-wide version resolution: which version of
// each plugin is the best known one, and which machines are behind it.
//
// Everything here is a pure function of the fleet's latest snapshots.
// Computing twice over the same input produces byte-identical documents —
// timestamps are derived from the input snapshots, never from the wall clock
// — so output diffing and change notification stay free of false positives.
package diff

import (
	"time"

	"github.com/fathom-audio/plugsync/internal/inventory"
)

// FleetView is the set of all machines' latest snapshots, keyed by machine
// name. It is rebuilt from the store on every run, never persisted.
type FleetView = map[string]*inventory.Snapshot

// UpdateReason classifies why a machine appears in an update list.
type UpdateReason string

const (
	// ReasonMissing: the machine lacks a plugin that peers hold.
	ReasonMissing UpdateReason = "missing"
	// ReasonOutdated: the machine's version parses and is strictly behind.
	ReasonOutdated UpdateReason = "outdated"
	// ReasonUnknown: the machine holds the plugin but its version did not
	// parse, while a peer has a resolved version to check against.
	ReasonUnknown UpdateReason = "unknown_version"
)

// ResolvedVersion is the fleet-wide winner for one plugin key: the highest
// parsed version, ties broken by the most recent scan, unparseable versions
// never preferred over parseable ones.
type ResolvedVersion struct {
	Key           string `json:"key"`
	BundleName    string `json:"bundle_name,omitempty"`
	BundleID      string `json:"bundle_id,omitempty"`
	Version       string `json:"version"`
	SourceMachine string `json:"source_machine"`
}

// UpdateEntry is one actionable item on a machine's update list.
type UpdateEntry struct {
	Key            string       `json:"key"`
	BundleName     string       `json:"bundle_name,omitempty"`
	BundleID       string       `json:"bundle_id,omitempty"`
	CurrentVersion string       `json:"current_version,omitempty"`
	TargetVersion  string       `json:"target_version"`
	SourceMachine  string       `json:"source_machine"`
	Reason         UpdateReason `json:"reason"`
}

// UpdateList carries one machine's pending actions. An empty Updates slice
// means the machine is fully up to date.
type UpdateList struct {
	GeneratedAt time.Time     `json:"generated_at"`
	MachineName string        `json:"machine_name"`
	Updates     []UpdateEntry `json:"updates"`
}

// MachineCounts summarizes one machine's standing against the fleet.
type MachineCounts struct {
	Total    int `json:"total"`
	UpToDate int `json:"up_to_date"`
	Outdated int `json:"outdated"`
	Missing  int `json:"missing"`
	Unknown  int `json:"unknown_versions"`
}

// Diff is the fleet-wide resolved-version document (diff__latest.json).
type Diff struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	Machines    []string                   `json:"machines"`
	Resolved    map[string]ResolvedVersion `json:"resolved"`
}

// Summary is the per-machine counts document (summary__latest.json).
type Summary struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	Machines    []string                   `json:"machines"`
	Counts      map[string]MachineCounts   `json:"counts"`
	Resolved    map[string]ResolvedVersion `json:"resolved"`
}

// Result bundles everything one resolver run produces.
type Result struct {
	Diff    *Diff
	Summary *Summary
	Updates map[string]*UpdateList
}

// UpdatesFor returns the update entries for one machine, or nil when the
// machine needs no action (or is unknown to the fleet).
func (r *Result) UpdatesFor(machine string) []UpdateEntry {
	if list, ok := r.Updates[machine]; ok {
		return list.Updates
	}
	return nil
}
