// Package hashcache persists bundle binary digests between scans so that
// unchanged bundles are not re-hashed. Entries are keyed on bundle path and
// validated against size and modification time; any change invalidates the
// cached digest.
package hashcache

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Cache provides SQLite-backed hash memoization. It satisfies
// inventory.HashCache.
type Cache struct {
	db *sql.DB
}

// New opens (or creates) the cache database at the given path.
// Use ":memory:" for in-memory databases (useful for testing).
func New(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open hash cache: %w", err)
	}

	// SQLite only allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// WAL keeps reads cheap while the scan loop writes.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create hash cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Lookup returns the cached digest for a bundle when its size and mtime still
// match. A stale or missing entry returns ok=false. A hit refreshes the
// entry's age, so PruneStale only removes bundles scans no longer see.
func (c *Cache) Lookup(bundlePath string, sizeBytes int64, modTime time.Time) (string, bool) {
	query := `
		SELECT hash FROM binary_hashes
		WHERE bundle_path = ? AND size_bytes = ? AND mtime_unix = ?
	`

	var hash string
	err := c.db.QueryRow(query, bundlePath, sizeBytes, modTime.Unix()).Scan(&hash)
	if err != nil {
		return "", false
	}

	// Best effort; a failed touch just ages the entry out earlier.
	_, _ = c.db.Exec(
		`UPDATE binary_hashes SET updated_at = ? WHERE bundle_path = ?`,
		time.Now().UTC().Format(time.RFC3339), bundlePath,
	)

	return hash, true
}

// Store inserts or replaces the digest for a bundle.
func (c *Cache) Store(bundlePath string, sizeBytes int64, modTime time.Time, hash string) error {
	query := `
		INSERT OR REPLACE INTO binary_hashes
		(bundle_path, size_bytes, mtime_unix, hash, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(query, bundlePath, sizeBytes, modTime.Unix(), hash, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store hash for %s: %w", bundlePath, err)
	}
	return nil
}

// PruneStale deletes entries not refreshed since the cutoff. Bundles removed
// from the plugin directory stop being refreshed and eventually age out here.
func (c *Cache) PruneStale(olderThan time.Time) (int64, error) {
	res, err := c.db.Exec(
		`DELETE FROM binary_hashes WHERE updated_at < ?`,
		olderThan.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune hash cache: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned rows: %w", err)
	}
	return n, nil
}
