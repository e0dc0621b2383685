// Package db provides the SQLite import history: which statement documents
// have been imported, by which profile, and what each run produced.
package db

import "context"

// Schema defines the SQL statements to create database tables.
const Schema = `
-- One row per invocation of the importer
CREATE TABLE IF NOT EXISTS import_runs (
    id TEXT PRIMARY KEY,               -- UUID
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    documents INTEGER NOT NULL DEFAULT 0,
    entries INTEGER NOT NULL DEFAULT 0,
    duplicates INTEGER NOT NULL DEFAULT 0
);

-- Documents keyed by content hash, so a renamed statement is still recognised
CREATE TABLE IF NOT EXISTS imported_documents (
    sha256 TEXT PRIMARY KEY,
    path TEXT NOT NULL,                -- Path the document was imported from
    archive_path TEXT,                 -- Where the document was archived, if it was
    profile TEXT NOT NULL,
    run_id TEXT NOT NULL REFERENCES import_runs(id),
    entries INTEGER NOT NULL,
    duplicates INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_imported_documents_profile
    ON imported_documents(profile);

CREATE INDEX IF NOT EXISTS idx_imported_documents_run
    ON imported_documents(run_id);
`

// InitializeSchema creates all tables if they don't exist.
func InitializeSchema(ctx context.Context, conn *Connection) error {
	if _, err := conn.db.ExecContext(ctx, Schema); err != nil {
		return err
	}
	return nil
}
