package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pigeonworks-llc/bean-import/pkg/beancount"
	"github.com/pigeonworks-llc/bean-import/pkg/config"
	"github.com/pigeonworks-llc/bean-import/pkg/db"
	"github.com/pigeonworks-llc/bean-import/pkg/pathutil"
	"github.com/pigeonworks-llc/bean-import/pkg/pipeline"
	"github.com/spf13/cobra"
)

var (
	profileName    string
	ledgerPath     string
	appendLedger   bool
	dropDuplicates bool
	force          bool
	outputPath     string
	archive        bool
	workers        int
)

// extractCmd represents the extract command.
var extractCmd = &cobra.Command{
	Use:   "extract [flags] FILE...",
	Short: "Extract Beancount entries from statement files",
	Long: `Extract Beancount entries from bank statement files.

This command:
1. Skips documents that were already imported (unless --force)
2. Builds and categorizes entries for each document in parallel
3. Marks entries that duplicate the existing ledger or an earlier document
4. Prints the entries, or appends them to the monthly ledger files
5. Records the documents in the import history when appending

Duplicates are printed commented out unless --drop-duplicates is given.

Example:
  bean-import extract --profile sparebank1-csv jan.csv feb.csv
  bean-import extract --profile norwegian-pdf --ledger main.beancount statement.pdf
  bean-import extract --profile sparebank1-csv --append --archive jan.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&profileName, "profile", "p", "", "Bank profile to import with (required)")
	extractCmd.Flags().StringVar(&ledgerPath, "ledger", "", "Beancount file to deduplicate against (default: monthly files under BEANCOUNT_ROOT)")
	extractCmd.Flags().BoolVar(&appendLedger, "append", false, "Append entries to the monthly ledger files")
	extractCmd.Flags().BoolVar(&dropDuplicates, "drop-duplicates", false, "Omit duplicates instead of printing them commented out")
	extractCmd.Flags().BoolVar(&force, "force", false, "Import documents that are already in the import history")
	extractCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write entries to this file instead of stdout")
	extractCmd.Flags().BoolVar(&archive, "archive", false, "Copy imported documents into the documents directory (with --append)")
	extractCmd.Flags().IntVarP(&workers, "workers", "j", 0, "Documents prepared in parallel (default BEAN_IMPORT_WORKERS)")

	extractCmd.MarkFlagRequired("profile")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := appConfig
	if err := cfg.Validate([]string{"beancount", "root"}); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if workers <= 0 {
		workers = cfg.Import.Workers
	}

	profiles, err := config.LoadProfiles(cfg.Import.ProfilesPath)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	profile, err := config.FindProfile(profiles, profileName)
	if err != nil {
		return err
	}

	pl, err := pipeline.New(profile, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	pathResolver := newPathResolver(cfg)
	repo := beancount.NewFileSystemRepository(pathResolver)

	conn, err := openDatabase(pathResolver)
	if err != nil {
		return err
	}
	defer conn.Close()
	history := db.NewHistory(conn)

	// Filter out already imported documents
	var jobs []pipeline.Job
	hashes := make(map[string]string)
	for _, path := range args {
		hash, err := db.HashFile(path)
		if err != nil {
			return err
		}

		previous, err := history.GetDocument(ctx, hash)
		if err != nil {
			return err
		}
		if previous != nil {
			if !force {
				slog.Warn("Document already imported, skipping (use --force to import again)",
					"document", path,
					"imported_from", previous.Path,
					"imported_at", previous.ImportedAt.Format("2006-01-02 15:04"))
				continue
			}
			slog.Info("Importing document again", "document", path, "previous_run", previous.RunID)
		}

		hashes[path] = hash
		jobs = append(jobs, pipeline.Job{Pipeline: pl, Path: path})
	}

	if len(jobs) == 0 {
		fmt.Println("No new documents to import")
		return nil
	}

	existing, err := loadLedger(repo)
	if err != nil {
		return fmt.Errorf("failed to load existing ledger: %w", err)
	}
	slog.Info("Loaded existing ledger", "entries", len(existing))

	results, err := pipeline.RunBatch(ctx, jobs, existing, workers)
	if err != nil {
		return fmt.Errorf("import canceled: %w", err)
	}

	printer := &beancount.Printer{DropDuplicates: dropDuplicates}

	if !appendLedger {
		if err := printResults(results, printer); err != nil {
			return fmt.Errorf("failed to write entries: %w", err)
		}
		logSummary(results)
		return nil
	}

	run, err := history.StartRun(ctx)
	if err != nil {
		return err
	}

	for _, res := range results {
		if res.Err != nil {
			continue
		}

		written, err := repo.AppendEntries(res.Entries, printer, "Imported from "+filepath.Base(res.Document))
		if err != nil {
			slog.Error("Failed to append entries", "document", res.Document, "error", err)
			continue
		}
		slog.Info("Appended entries", "document", res.Document, "written", written)

		record := db.DocumentRecord{
			SHA256:     hashes[res.Document],
			Path:       res.Document,
			Profile:    profile.Name,
			Entries:    len(res.Entries) - res.Duplicates,
			Duplicates: res.Duplicates,
			Skipped:    len(res.Skipped),
		}

		if archive {
			dest, err := archiveDocument(pathResolver, profile, res)
			if err != nil {
				slog.Error("Failed to archive document", "document", res.Document, "error", err)
			} else if dest != "" {
				record.ArchivePath.String, record.ArchivePath.Valid = dest, true
				slog.Info("Archived document", "document", res.Document, "path", dest)
			}
		}

		if err := history.RecordDocument(ctx, run, record); err != nil {
			slog.Error("Failed to record document", "document", res.Document, "error", err)
		}
	}

	if err := history.FinishRun(ctx, run); err != nil {
		return err
	}

	fmt.Println("\n=== Import Summary ===")
	fmt.Printf("Documents imported: %d\n", run.Documents)
	fmt.Printf("Entries written:    %d\n", run.Entries)
	fmt.Printf("Duplicates:         %d\n", run.Duplicates)
	fmt.Println()

	logSummary(results)
	return nil
}

// loadLedger reads the entries new documents are deduplicated against.
func loadLedger(repo *beancount.FileSystemRepository) ([]beancount.Directive, error) {
	if ledgerPath != "" {
		return beancount.ParseFile(ledgerPath)
	}
	return repo.LoadEntries()
}

func printResults(results []*pipeline.Result, printer *beancount.Printer) error {
	var w io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	for _, res := range results {
		if res.Err != nil || len(res.Entries) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, ";; -*- mode: beancount -*-\n;; %s\n\n", res.Document); err != nil {
			return err
		}
		if err := printer.Write(w, res.Entries); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// archiveDocument copies a document into the documents tree under the
// profile's account, dated by its latest entry. Documents without entries
// are not archived.
func archiveDocument(paths *pathutil.PathResolver, profile config.Profile, res *pipeline.Result) (string, error) {
	var latest time.Time
	for _, e := range res.Entries {
		if d := e.EntryDate(); d.After(latest) {
			latest = d
		}
	}
	if latest.IsZero() {
		return "", nil
	}

	dest, err := paths.GetDocumentPath(profile.Account, latest.Format("2006-01-02"), profile.ArchiveName(res.Document))
	if err != nil {
		return "", err
	}
	if paths.FileExists(dest) {
		return dest, nil
	}
	if err := paths.EnsureParentDir(dest); err != nil {
		return "", err
	}

	src, err := os.Open(res.Document)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	return dest, dst.Close()
}

func logSummary(results []*pipeline.Result) {
	var entries, categorized, duplicates, skipped, failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		entries += len(res.Entries)
		categorized += res.Categorized
		duplicates += res.Duplicates
		skipped += len(res.Skipped)
	}

	slog.Info("Extract completed",
		"documents", len(results),
		"failed", failed,
		"entries", entries,
		"categorized", categorized,
		"duplicates", duplicates,
		"skipped_rows", skipped,
	)
}
