package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// Run is one invocation of the importer.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Documents  int
	Entries    int
	Duplicates int
}

// DocumentRecord is a statement document that has been imported.
type DocumentRecord struct {
	SHA256      string
	Path        string
	ArchivePath sql.NullString
	Profile     string
	RunID       string
	Entries     int
	Duplicates  int
	Skipped     int
	ImportedAt  time.Time
}

// History manages import history operations.
type History struct {
	conn *Connection
	now  func() time.Time
}

// NewHistory creates a new History instance.
func NewHistory(conn *Connection) *History {
	return &History{conn: conn, now: time.Now}
}

// HashFile returns the hex encoded SHA-256 of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// StartRun records the start of an import run.
func (h *History) StartRun(ctx context.Context) (*Run, error) {
	run := &Run{ID: uuid.NewString(), StartedAt: h.now().UTC()}

	_, err := h.conn.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, started_at) VALUES (?, ?)`,
		run.ID, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

// FinishRun stores the run's totals and marks it finished.
func (h *History) FinishRun(ctx context.Context, run *Run) error {
	run.FinishedAt = sql.NullTime{Time: h.now().UTC(), Valid: true}

	result, err := h.conn.db.ExecContext(ctx, `
		UPDATE import_runs
		SET finished_at = ?, documents = ?, entries = ?, duplicates = ?
		WHERE id = ?
	`, run.FinishedAt.Time, run.Documents, run.Entries, run.Duplicates, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// RecordDocument records an imported document inside the run's totals.
// Re-importing a document (same hash) replaces its previous record.
func (h *History) RecordDocument(ctx context.Context, run *Run, record DocumentRecord) error {
	if record.ImportedAt.IsZero() {
		record.ImportedAt = h.now().UTC()
	}
	record.RunID = run.ID

	query := `
		INSERT INTO imported_documents
			(sha256, path, archive_path, profile, run_id, entries, duplicates, skipped, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sha256) DO UPDATE SET
			path = excluded.path,
			archive_path = excluded.archive_path,
			profile = excluded.profile,
			run_id = excluded.run_id,
			entries = excluded.entries,
			duplicates = excluded.duplicates,
			skipped = excluded.skipped,
			imported_at = excluded.imported_at
	`

	_, err := h.conn.db.ExecContext(ctx, query,
		record.SHA256,
		record.Path,
		record.ArchivePath,
		record.Profile,
		record.RunID,
		record.Entries,
		record.Duplicates,
		record.Skipped,
		record.ImportedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record document: %w", err)
	}

	run.Documents++
	run.Entries += record.Entries
	run.Duplicates += record.Duplicates
	return nil
}

// IsImported checks if a document with the given hash has been imported.
func (h *History) IsImported(ctx context.Context, hash string) (bool, error) {
	var count int
	err := h.conn.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM imported_documents WHERE sha256 = ?`, hash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check if imported: %w", err)
	}
	return count > 0, nil
}

const documentColumns = `sha256, path, archive_path, profile, run_id, entries, duplicates, skipped, imported_at`

func scanDocument(row interface{ Scan(...any) error }) (DocumentRecord, error) {
	var r DocumentRecord
	err := row.Scan(
		&r.SHA256,
		&r.Path,
		&r.ArchivePath,
		&r.Profile,
		&r.RunID,
		&r.Entries,
		&r.Duplicates,
		&r.Skipped,
		&r.ImportedAt,
	)
	return r, err
}

// GetDocument retrieves a document record by hash. It returns nil when the
// document has not been imported.
func (h *History) GetDocument(ctx context.Context, hash string) (*DocumentRecord, error) {
	row := h.conn.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM imported_documents WHERE sha256 = ?`, hash)

	record, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &record, nil
}

// ListDocuments returns imported documents, newest first. An empty profile
// lists documents of every profile.
func (h *History) ListDocuments(ctx context.Context, profile string) ([]DocumentRecord, error) {
	query := `SELECT ` + documentColumns + ` FROM imported_documents`
	var args []any
	if profile != "" {
		query += ` WHERE profile = ?`
		args = append(args, profile)
	}
	query += ` ORDER BY imported_at DESC, path`

	rows, err := h.conn.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var records []DocumentRecord
	for rows.Next() {
		record, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ForgetDocument deletes a document record so the document can be imported
// again without --force.
func (h *History) ForgetDocument(ctx context.Context, hash string) (bool, error) {
	result, err := h.conn.db.ExecContext(ctx, `DELETE FROM imported_documents WHERE sha256 = ?`, hash)
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ProfileStats is the per profile part of Stats.
type ProfileStats struct {
	Profile    string
	Documents  int
	Entries    int
	Duplicates int
}

// Stats represents import statistics.
type Stats struct {
	TotalRuns       int
	TotalDocuments  int
	TotalEntries    int
	TotalDuplicates int
	LastImport      sql.NullString
	Profiles        []ProfileStats
}

// GetStats retrieves import statistics.
func (h *History) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats

	err := h.conn.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM import_runs`).Scan(&stats.TotalRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to get run count: %w", err)
	}

	err = h.conn.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(entries), 0), COALESCE(SUM(duplicates), 0), MAX(imported_at)
		FROM imported_documents
	`).Scan(&stats.TotalDocuments, &stats.TotalEntries, &stats.TotalDuplicates, &stats.LastImport)
	if err != nil {
		return nil, fmt.Errorf("failed to get document totals: %w", err)
	}

	rows, err := h.conn.db.QueryContext(ctx, `
		SELECT profile, COUNT(*), SUM(entries), SUM(duplicates)
		FROM imported_documents
		GROUP BY profile
		ORDER BY profile
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p ProfileStats
		if err := rows.Scan(&p.Profile, &p.Documents, &p.Entries, &p.Duplicates); err != nil {
			return nil, fmt.Errorf("failed to scan profile stats: %w", err)
		}
		stats.Profiles = append(stats.Profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &stats, nil
}
