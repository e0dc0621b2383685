package cmd

import (
	"fmt"
	"log/slog"

	"github.com/pigeonworks-llc/bean-import/pkg/db"
	"github.com/spf13/cobra"
)

// forgetCmd represents the forget command.
var forgetCmd = &cobra.Command{
	Use:   "forget FILE...",
	Short: "Remove documents from the import history",
	Long: `Remove documents from the import history so they can be imported
again without --force. Documents are matched by content, so a renamed
statement is still found. Entries already appended to the ledger are not
touched.

Example:
  bean-import forget ~/Downloads/transactions.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runForget,
}

func runForget(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := appConfig

	if err := cfg.Validate([]string{"beancount", "root"}); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	conn, err := openDatabase(newPathResolver(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	history := db.NewHistory(conn)

	for _, path := range args {
		hash, err := db.HashFile(path)
		if err != nil {
			return err
		}

		deleted, err := history.ForgetDocument(ctx, hash)
		if err != nil {
			return err
		}
		if !deleted {
			slog.Warn("Document is not in the import history", "document", path)
			continue
		}
		fmt.Printf("Forgot %s\n", path)
	}

	return nil
}
