// Package cmd provides CLI commands for bean-import.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pigeonworks-llc/bean-import/pkg/config"
	"github.com/pigeonworks-llc/bean-import/pkg/db"
	"github.com/pigeonworks-llc/bean-import/pkg/pathutil"
	"github.com/spf13/cobra"
)

var (
	envFile   string
	debug     bool
	logFormat string

	appConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "bean-import",
	Short: "Import bank statements into Beancount",
	Long: `bean-import converts bank statement exports (CSV transaction lists and
PDF account statements) into Beancount entries.

It supports:
- Bank profiles describing each export format (config/profiles.yaml)
- Rule based categorization of transactions
- Duplicate detection against the existing ledger
- Import history in SQLite so a statement is not imported twice

Example:
  bean-import extract --profile sparebank1-csv ~/Downloads/transactions.csv
  bean-import extract --profile norwegian-pdf --append statement.pdf
  bean-import stats
  bean-import forget statement.pdf`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		appConfig, err = config.Load(envFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logLevel := slog.LevelInfo
		if debug || appConfig.Debug {
			logLevel = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{Level: logLevel}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if logFormat == "json" {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(forgetCmd)
}

func newPathResolver(cfg *config.Config) *pathutil.PathResolver {
	return pathutil.New(pathutil.Config{
		BeancountRoot: cfg.Beancount.Root,
		DatabasePath:  cfg.Import.DBPath,
		DocumentsDir:  cfg.Import.DocumentsDir,
	})
}

// openDatabase opens the import history. Callers must close it.
func openDatabase(pathResolver *pathutil.PathResolver) (*db.Connection, error) {
	dbPath := pathResolver.GetDatabasePath()
	slog.Debug("Opening database", "path", dbPath)

	conn, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return conn, nil
}
