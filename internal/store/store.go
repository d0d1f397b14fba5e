// Package store persists snapshot and report documents to a shared backend.
//
// The backend is a key-addressed document store with a latest-pointer
// convention: each scan writes an immutable timestamped snapshot, then
// overwrites the machine's "__latest" alias. Writes are atomic at document
// granularity (write-then-rename locally, single PUT remotely), so a
// concurrent reader sees either the old or the new document, never a partial
// one. Concurrent writers to the same name are last-writer-wins.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested document does not exist. Callers
// iterating a growing fleet must treat it as "machine absent", not a failure.
var ErrNotFound = errors.New("document not found")

// TimestampedDoc is one historical snapshot document.
type TimestampedDoc struct {
	Name      string
	Timestamp time.Time
	Content   []byte
}

// Store is the document-store contract the core depends on. Retries, backoff
// and authentication are backend concerns; the core only sees success,
// ErrNotFound, or an opaque backend error.
type Store interface {
	// Put writes a document under the given name, overwriting any previous
	// content atomically.
	Put(name string, content []byte) error

	// Get reads a document. Returns ErrNotFound when it does not exist.
	Get(name string) ([]byte, error)

	// GetLatest reads a machine's latest snapshot document.
	GetLatest(machine string) ([]byte, error)

	// ListLatestMachines returns the machines that currently have a latest
	// pointer, sorted by name.
	ListLatestMachines() ([]string, error)

	// ListTimestamped returns a machine's historical snapshots ordered oldest
	// first.
	ListTimestamped(machine string) ([]TimestampedDoc, error)

	// Prune deletes a machine's timestamped snapshots older than the cutoff
	// and returns the number deleted. Latest pointers are never pruned.
	Prune(machine string, olderThan time.Time) (int, error)
}
