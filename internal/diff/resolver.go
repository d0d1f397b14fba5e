package diff

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fathom-audio/plugsync/internal/inventory"
	"github.com/fathom-audio/plugsync/internal/version"
)

// candidate is one machine's claim on a plugin key.
type candidate struct {
	machine  string
	record   inventory.PluginRecord
	version  version.Version
	scanTime time.Time
}

// Compute resolves the fleet's best known version per plugin and derives the
// per-machine update lists. It is a pure function of the fleet view.
func Compute(fleet FleetView) *Result {
	machines := sortedMachines(fleet)
	generatedAt := latestScanTime(fleet)

	// Union of plugin keys across all snapshots, with per-machine candidates.
	candidates := make(map[string][]candidate)
	pluginsByMachine := make(map[string]map[string]inventory.PluginRecord, len(machines))
	for _, machine := range machines {
		snap := fleet[machine]
		byKey := snap.PluginMap()
		pluginsByMachine[machine] = byKey
		for key, record := range byKey {
			candidates[key] = append(candidates[key], candidate{
				machine:  machine,
				record:   record,
				version:  recordVersion(record),
				scanTime: snap.ScanTime.UTC(),
			})
		}
	}

	keys := make([]string, 0, len(candidates))
	for key := range candidates {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	resolved := make(map[string]ResolvedVersion, len(keys))
	updates := make(map[string]*UpdateList, len(machines))
	counts := make(map[string]MachineCounts, len(machines))
	for _, machine := range machines {
		updates[machine] = &UpdateList{
			GeneratedAt: generatedAt,
			MachineName: machine,
			Updates:     []UpdateEntry{},
		}
		counts[machine] = MachineCounts{Total: len(pluginsByMachine[machine])}
	}

	for _, key := range keys {
		holders := candidates[key]
		// Candidates were appended in sorted machine order, so tie-breaks
		// below are deterministic.
		best, hasBest := resolveBest(holders)

		sample := holders[0].record
		if hasBest {
			resolved[key] = ResolvedVersion{
				Key:           key,
				BundleName:    best.record.BundleName,
				BundleID:      best.record.BundleID,
				Version:       recordLabel(best.record),
				SourceMachine: best.machine,
			}
		}

		for _, machine := range machines {
			record, present := pluginsByMachine[machine][key]
			c := counts[machine]

			if !present {
				// A key held by a single machine resolves trivially to that
				// machine's copy and obligates nobody else.
				if hasBest && len(holders) >= 2 {
					c.Missing++
					updates[machine].Updates = append(updates[machine].Updates, UpdateEntry{
						Key:           key,
						BundleName:    sample.BundleName,
						BundleID:      sample.BundleID,
						TargetVersion: resolved[key].Version,
						SourceMachine: resolved[key].SourceMachine,
						Reason:        ReasonMissing,
					})
				}
				counts[machine] = c
				continue
			}

			v := recordVersion(record)
			switch {
			case !v.IsParsed():
				c.Unknown++
				if hasBest && best.machine != machine {
					updates[machine].Updates = append(updates[machine].Updates, UpdateEntry{
						Key:            key,
						BundleName:     record.BundleName,
						BundleID:       record.BundleID,
						CurrentVersion: recordLabel(record),
						TargetVersion:  resolved[key].Version,
						SourceMachine:  resolved[key].SourceMachine,
						Reason:         ReasonUnknown,
					})
				}
			case hasBest && version.Compare(v, best.version) < 0:
				c.Outdated++
				updates[machine].Updates = append(updates[machine].Updates, UpdateEntry{
					Key:            key,
					BundleName:     record.BundleName,
					BundleID:       record.BundleID,
					CurrentVersion: recordLabel(record),
					TargetVersion:  resolved[key].Version,
					SourceMachine:  resolved[key].SourceMachine,
					Reason:         ReasonOutdated,
				})
			default:
				c.UpToDate++
			}
			counts[machine] = c
		}
	}

	return &Result{
		Diff: &Diff{
			GeneratedAt: generatedAt,
			Machines:    machines,
			Resolved:    resolved,
		},
		Summary: &Summary{
			GeneratedAt: generatedAt,
			Machines:    machines,
			Counts:      counts,
			Resolved:    resolved,
		},
		Updates: updates,
	}
}

// resolveBest picks the winning candidate: highest parsed version, ties
// broken by most recent scan time, then by machine order. Returns false when
// no candidate has a parseable version.
func resolveBest(holders []candidate) (candidate, bool) {
	var best candidate
	found := false
	for _, c := range holders {
		if !c.version.IsParsed() {
			continue
		}
		if !found {
			best, found = c, true
			continue
		}
		switch version.Compare(c.version, best.version) {
		case 1:
			best = c
		case 0:
			if c.scanTime.After(best.scanTime) {
				best = c
			}
		}
	}
	return best, found
}

// recordVersion parses the comparison version for a record. Records whose
// metadata extraction failed never parse.
func recordVersion(r inventory.PluginRecord) version.Version {
	if r.MetadataError {
		return version.Parse(version.Unknown)
	}
	return version.Preferred(r.ShortVersion, r.BundleVersion)
}

// recordLabel formats a record's display version, falling back to the unknown
// sentinel.
func recordLabel(r inventory.PluginRecord) string {
	if label := version.Label(r.ShortVersion, r.BundleVersion); label != "" {
		return label
	}
	return version.Unknown
}

// latestScanTime returns the most recent scan time across the fleet, making
// derived documents a pure function of their inputs.
func latestScanTime(fleet FleetView) time.Time {
	var latest time.Time
	for _, snap := range fleet {
		if t := snap.ScanTime.UTC(); t.After(latest) {
			latest = t
		}
	}
	return latest
}

func sortedMachines(fleet FleetView) []string {
	machines := make([]string, 0, len(fleet))
	for machine := range fleet {
		machines = append(machines, machine)
	}
	sort.Strings(machines)
	return machines
}

// FormatSummary renders a terse human-readable digest of a resolver run for
// command output and the daemon log.
func FormatSummary(result *Result) string {
	if result == nil || len(result.Summary.Machines) == 0 {
		return "No snapshots found."
	}

	var sb strings.Builder
	sb.WriteString("Plugin sync summary:\n")
	for _, machine := range result.Summary.Machines {
		c := result.Summary.Counts[machine]
		sb.WriteString(fmt.Sprintf("- %s: %d plugins, %d outdated, %d missing, %d unknown versions\n",
			machine, c.Total, c.Outdated, c.Missing, c.Unknown))
	}

	pending := 0
	for _, machine := range result.Summary.Machines {
		pending += len(result.UpdatesFor(machine))
	}
	if pending == 0 {
		sb.WriteString("All machines up to date.\n")
	} else {
		sb.WriteString(fmt.Sprintf("Pending update actions: %d\n", pending))
	}

	return strings.TrimRight(sb.String(), "\n")
}
