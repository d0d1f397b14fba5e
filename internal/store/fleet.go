package store

import (
	"encoding/json"
	"fmt"

	"github.com/fathom-audio/plugsync/internal/inventory"
)

// EncodeDocument renders a document payload in the store's canonical form:
// two-space indented JSON with a trailing newline. Encoding the same value
// twice yields identical bytes, which downstream diffing relies on.
func EncodeDocument(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteSnapshot persists a snapshot: the immutable timestamped document goes
// into the archive folder, then the machine's latest pointer is overwritten.
// Ordering matters — history lands before the pointer moves, so a reader
// following the pointer never references a missing document.
func WriteSnapshot(s Store, snap *inventory.Snapshot) error {
	payload, err := EncodeDocument(snap)
	if err != nil {
		return err
	}

	timestamped := ArchiveDirName + "/" + SnapshotName(snap.MachineName, snap.ScanTime)
	if err := s.Put(timestamped, payload); err != nil {
		return err
	}
	return s.Put(LatestName(snap.MachineName), payload)
}

// LoadFleet reads every machine's latest snapshot. Machines whose latest
// document is missing or unreadable are skipped — the fleet may be growing or
// a peer may be mid-write — and never fail the run for the others.
func LoadFleet(s Store) (map[string]*inventory.Snapshot, error) {
	machines, err := s.ListLatestMachines()
	if err != nil {
		return nil, fmt.Errorf("failed to list fleet machines: %w", err)
	}

	fleet := make(map[string]*inventory.Snapshot, len(machines))
	for _, machine := range machines {
		content, err := s.GetLatest(machine)
		if err != nil {
			continue // absent from this run
		}
		var snap inventory.Snapshot
		if err := json.Unmarshal(content, &snap); err != nil {
			continue // corrupt or torn document, skip this machine
		}
		if snap.MachineName == "" {
			continue
		}
		fleet[snap.MachineName] = &snap
	}
	return fleet, nil
}
