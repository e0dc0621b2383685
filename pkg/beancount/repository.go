package beancount

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pigeonworks-llc/bean-import/pkg/pathutil"
)

var yearDirRe = regexp.MustCompile(`^\d{4}$`)

// Repository defines the interface for Beancount file operations.
type Repository interface {
	// AppendTransaction appends formatted entry text to a monthly file
	AppendTransaction(yearMonth, transaction string, comment ...string) error

	// AppendEntries appends directives to the monthly files of their dates
	AppendEntries(entries []Directive, printer *Printer, comment string) (int, error)

	// ReadMonthFile reads the content of a monthly file
	ReadMonthFile(yearMonth string) (string, error)

	// MonthFileExists checks if a monthly file exists
	MonthFileExists(yearMonth string) bool

	// GetMonthFilesInYear gets all monthly files in a year
	GetMonthFilesInYear(year string) ([]string, error)

	// EnsureMonthFile ensures a monthly file exists with header
	EnsureMonthFile(yearMonth string) error

	// LoadEntries parses every monthly file under the root
	LoadEntries() ([]Directive, error)
}

// FileSystemRepository is a file system implementation of Repository.
type FileSystemRepository struct {
	pathResolver *pathutil.PathResolver
}

// NewFileSystemRepository creates a new FileSystemRepository.
func NewFileSystemRepository(pathResolver *pathutil.PathResolver) *FileSystemRepository {
	return &FileSystemRepository{
		pathResolver: pathResolver,
	}
}

// YearMonth returns the monthly file key of t, e.g. "2024-01".
func YearMonth(t time.Time) string {
	return t.Format("2006-01")
}

// AppendTransaction appends entry text to a monthly file.
// It creates the file if it doesn't exist.
func (r *FileSystemRepository) AppendTransaction(yearMonth, transaction string, comment ...string) error {
	filePath, err := r.pathResolver.GetMonthFilePath(yearMonth)
	if err != nil {
		return fmt.Errorf("failed to get month file path: %w", err)
	}

	// Ensure file exists with header
	if err := r.EnsureMonthFile(yearMonth); err != nil {
		return fmt.Errorf("failed to ensure month file: %w", err)
	}

	// Prepare content to append
	var content string
	if len(comment) > 0 && comment[0] != "" {
		content += fmt.Sprintf("; %s\n", comment[0])
	}
	content += transaction
	if len(transaction) > 0 && transaction[len(transaction)-1] != '\n' {
		content += "\n"
	}
	content += "\n" // Add blank line after transaction

	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file for appending: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}

	return nil
}

// AppendEntries groups entries by month and appends them in their original
// order, one block per month headed by comment. Entries the printer omits
// are not written. It returns the number of entries written.
func (r *FileSystemRepository) AppendEntries(entries []Directive, printer *Printer, comment string) (int, error) {
	blocks := make(map[string]*strings.Builder)
	counts := make(map[string]int)
	var months []string

	for _, e := range entries {
		text := printer.Format(e)
		if text == "" {
			continue
		}
		key := YearMonth(e.EntryDate())
		sb, ok := blocks[key]
		if !ok {
			sb = &strings.Builder{}
			blocks[key] = sb
			months = append(months, key)
		} else {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
		counts[key]++
	}

	sort.Strings(months)
	written := 0
	for _, month := range months {
		if err := r.AppendTransaction(month, blocks[month].String(), comment); err != nil {
			return written, fmt.Errorf("failed to append to %s: %w", month, err)
		}
		written += counts[month]
	}

	return written, nil
}

// ReadMonthFile reads the content of a monthly file.
// Returns empty string if file doesn't exist.
func (r *FileSystemRepository) ReadMonthFile(yearMonth string) (string, error) {
	filePath, err := r.pathResolver.GetMonthFilePath(yearMonth)
	if err != nil {
		return "", fmt.Errorf("failed to get month file path: %w", err)
	}

	if !r.pathResolver.FileExists(filePath) {
		return "", nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return string(data), nil
}

// MonthFileExists checks if a monthly file exists.
func (r *FileSystemRepository) MonthFileExists(yearMonth string) bool {
	filePath, err := r.pathResolver.GetMonthFilePath(yearMonth)
	if err != nil {
		return false
	}

	return r.pathResolver.FileExists(filePath)
}

// GetMonthFilesInYear gets all monthly files in a year.
// Returns a slice of year-month strings (e.g., ["2024-01", "2024-02"]).
func (r *FileSystemRepository) GetMonthFilesInYear(year string) ([]string, error) {
	yearDir := r.pathResolver.GetYearDir(year)
	if !r.pathResolver.FileExists(yearDir) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(yearDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read year directory: %w", err)
	}

	var monthFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if filepath.Ext(name) == ".beancount" {
			// Remove .beancount extension to get YYYY-MM
			monthKey := name[:len(name)-len(".beancount")]
			monthFiles = append(monthFiles, monthKey)
		}
	}

	return monthFiles, nil
}

// EnsureMonthFile ensures a monthly file exists with header.
// If the file already exists, this is a no-op.
func (r *FileSystemRepository) EnsureMonthFile(yearMonth string) error {
	filePath, err := r.pathResolver.GetMonthFilePath(yearMonth)
	if err != nil {
		return fmt.Errorf("failed to get month file path: %w", err)
	}

	if r.MonthFileExists(yearMonth) {
		return nil
	}

	if err := r.pathResolver.EnsureParentDir(filePath); err != nil {
		return fmt.Errorf("failed to ensure parent directory: %w", err)
	}

	header := r.generateFileHeader(yearMonth)
	if err := os.WriteFile(filePath, []byte(header), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// LoadEntries parses the monthly files of every year directory under the
// root, in chronological file order. Includes inside monthly files are not
// followed.
func (r *FileSystemRepository) LoadEntries() ([]Directive, error) {
	root := r.pathResolver.GetBeancountRoot()
	dirs, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read beancount root: %w", err)
	}

	var entries []Directive
	for _, d := range dirs {
		if !d.IsDir() || !yearDirRe.MatchString(d.Name()) {
			continue
		}

		months, err := r.GetMonthFilesInYear(d.Name())
		if err != nil {
			return nil, err
		}
		sort.Strings(months)

		for _, month := range months {
			path, err := r.pathResolver.GetMonthFilePath(month)
			if err != nil {
				continue
			}
			content, err := r.ReadMonthFile(month)
			if err != nil {
				return nil, err
			}
			parsed, err := Parse(strings.NewReader(content), path)
			if err != nil {
				return nil, err
			}
			entries = append(entries, parsed...)
		}
	}

	return entries, nil
}

// generateFileHeader generates a header comment for a monthly file.
func (r *FileSystemRepository) generateFileHeader(yearMonth string) string {
	now := time.Now().Format(time.RFC3339)
	return fmt.Sprintf("; Beancount file for %s\n; Generated at %s\n\n", yearMonth, now)
}
