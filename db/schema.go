// ABOUTME: Database schema definitions and migrations
// ABOUTME: Handles SQLite table creation and initialization
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	fields TEXT NOT NULL,
	tags TEXT,
	source TEXT,
	is_verified INTEGER NOT NULL DEFAULT 0,
	needs_review INTEGER NOT NULL DEFAULT 0,
	sync_status TEXT NOT NULL DEFAULT 'synced',
	conflict_data TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_sync_status ON contacts(sync_status);
CREATE INDEX IF NOT EXISTS idx_contacts_updated_at ON contacts(updated_at);
`

// InitSchema creates tables if they don't exist.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
