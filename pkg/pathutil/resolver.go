// Package pathutil provides centralized path management for Beancount files,
// the import history database and archived statements.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathResolver manages paths for Beancount files, database, and documents.
type PathResolver struct {
	beancountRoot string
	databasePath  string
	documentsDir  string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// BeancountRoot is the root directory for all Beancount files (e.g., ~/accounting/beancount)
	BeancountRoot string
	// DatabasePath is the path to the SQLite database file for import history
	DatabasePath string
	// DocumentsDir is the directory imported statements are archived to
	DocumentsDir string
}

// New creates a new PathResolver with the given configuration.
// If DatabasePath is empty, it defaults to {BeancountRoot}/.import/import.db
// If DocumentsDir is empty, it defaults to {BeancountRoot}/documents
func New(config Config) *PathResolver {
	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(config.BeancountRoot, ".import", "import.db")
	}

	documentsDir := config.DocumentsDir
	if documentsDir == "" {
		documentsDir = filepath.Join(config.BeancountRoot, "documents")
	}

	return &PathResolver{
		beancountRoot: config.BeancountRoot,
		databasePath:  dbPath,
		documentsDir:  documentsDir,
	}
}

// GetBeancountRoot returns the Beancount root directory.
func (p *PathResolver) GetBeancountRoot() string {
	return p.beancountRoot
}

// GetDatabasePath returns the database file path.
func (p *PathResolver) GetDatabasePath() string {
	return p.databasePath
}

// GetDocumentsDir returns the archive directory.
func (p *PathResolver) GetDocumentsDir() string {
	return p.documentsDir
}

// GetYearDir returns the directory path for a year.
// Example: ~/accounting/beancount/2024
func (p *PathResolver) GetYearDir(year string) string {
	return filepath.Join(p.beancountRoot, year)
}

// GetMonthFilePath returns the file path for a month.
// yearMonth should be in YYYY-MM format.
// Example: ~/accounting/beancount/2024/2024-01.beancount
func (p *PathResolver) GetMonthFilePath(yearMonth string) (string, error) {
	parts := strings.Split(yearMonth, "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return "", fmt.Errorf("invalid year-month format: %s. Expected YYYY-MM", yearMonth)
	}

	year := parts[0]
	yearDir := p.GetYearDir(year)
	filename := fmt.Sprintf("%s.beancount", yearMonth)

	return filepath.Join(yearDir, filename), nil
}

// GetDocumentPath returns the archive path for a statement, filed by
// account and date.
// Example: documents/Assets/Bank/Checking/2024-01-31.sparebank1.statement.pdf
func (p *PathResolver) GetDocumentPath(account, date, filename string) (string, error) {
	if len(strings.Split(date, "-")) != 3 {
		return "", fmt.Errorf("invalid date format: %s. Expected YYYY-MM-DD", date)
	}

	dir := filepath.Join(append([]string{p.documentsDir}, strings.Split(account, ":")...)...)
	return filepath.Join(dir, date+"."+filename), nil
}

// EnsureDir creates a directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureParentDir ensures the parent directory of a file exists.
func (p *PathResolver) EnsureParentDir(filePath string) error {
	dir := filepath.Dir(filePath)
	return p.EnsureDir(dir)
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
