package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database.
// These run on startup to ensure tables exist.
// Groups are stored whole, in their wire encoding; the identity columns are
// kept alongside for listing without decoding every payload.
const schema = `
CREATE TABLE IF NOT EXISTS groups (
    key TEXT PRIMARY KEY,
    description TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    schema_version INTEGER NOT NULL,
    revision INTEGER NOT NULL,
    fingerprint TEXT NOT NULL,
    payload BLOB NOT NULL,
    updated_at INTEGER NOT NULL,
    UNIQUE (description, created_at)
);

CREATE INDEX IF NOT EXISTS idx_groups_created_at ON groups(created_at);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
