package database

// migrationsSQL contains all database migrations, applied in order by
// version number.
var migrationsSQL = map[int]string{
	1: migrationV1APIKeys,
}

// migrationV1APIKeys creates the API key table. Only a SHA-256 hash of each
// key is stored; key_prefix lets operators recognise a key in listings.
const migrationV1APIKeys = `
CREATE TABLE IF NOT EXISTS api_keys (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    key_hash TEXT NOT NULL UNIQUE,
    key_prefix TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
    last_used_at TEXT,
    revoked_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_api_keys_active
    ON api_keys(key_hash)
    WHERE revoked_at IS NULL;
`
