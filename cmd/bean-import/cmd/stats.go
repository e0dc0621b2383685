package cmd

import (
	"fmt"

	"github.com/pigeonworks-llc/bean-import/pkg/db"
	"github.com/spf13/cobra"
)

var showDocuments bool

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display import statistics",
	Long: `Display statistics about imported statement documents.

Shows:
- Where the import history and archived documents are kept
- Total number of import runs
- Total number of imported documents, entries and duplicates
- Totals per bank profile
- Last import timestamp

Example:
  bean-import stats
  bean-import stats --documents`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&showDocuments, "documents", false, "List every imported document")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := appConfig

	if err := cfg.Validate([]string{"beancount", "root"}); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	pathResolver := newPathResolver(cfg)
	conn, err := openDatabase(pathResolver)
	if err != nil {
		return err
	}
	defer conn.Close()

	history := db.NewHistory(conn)

	stats, err := history.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	fmt.Println("\n=== Import Statistics ===")
	fmt.Printf("Database:           %s\n", conn.GetPath())
	fmt.Printf("Documents dir:      %s\n", pathResolver.GetDocumentsDir())
	fmt.Printf("Import runs:        %d\n", stats.TotalRuns)
	fmt.Printf("Documents imported: %d\n", stats.TotalDocuments)
	fmt.Printf("Entries imported:   %d\n", stats.TotalEntries)
	fmt.Printf("Duplicates found:   %d\n", stats.TotalDuplicates)

	if stats.LastImport.Valid {
		fmt.Printf("Last import:        %s\n", stats.LastImport.String)
	} else {
		fmt.Printf("Last import:        (never)\n")
	}

	if len(stats.Profiles) > 0 {
		fmt.Println("\nBy profile:")
		for _, p := range stats.Profiles {
			fmt.Printf("  %-24s %4d documents %6d entries %5d duplicates\n", p.Profile, p.Documents, p.Entries, p.Duplicates)
		}
	}

	if showDocuments {
		docs, err := history.ListDocuments(ctx, "")
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}

		fmt.Println("\nDocuments:")
		for _, d := range docs {
			fmt.Printf("  %s  %-20s %s\n", d.ImportedAt.Format("2006-01-02 15:04"), d.Profile, d.Path)
		}
	}

	fmt.Println()
	return nil
}
