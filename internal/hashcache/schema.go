package hashcache

const schema = `
CREATE TABLE IF NOT EXISTS binary_hashes (
    bundle_path TEXT PRIMARY KEY,
    size_bytes INTEGER NOT NULL,
    mtime_unix INTEGER NOT NULL,
    hash TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_hashes_updated ON binary_hashes(updated_at);
`
