// Package pipeline turns statement documents into categorized, deduplicated
// ledger entries for one bank profile.
//
// Processing has two steps. Prepare builds and categorizes the entries of a
// document and touches no shared state, so documents can be prepared
// concurrently. Deduplicate compares the prepared entries with the existing
// ledger and must run in document order.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pigeonworks-llc/bean-import/pkg/beancount"
	"github.com/pigeonworks-llc/bean-import/pkg/categorize"
	"github.com/pigeonworks-llc/bean-import/pkg/config"
	"github.com/pigeonworks-llc/bean-import/pkg/dedup"
	"github.com/pigeonworks-llc/bean-import/pkg/importer"
	"github.com/pigeonworks-llc/bean-import/pkg/source"
	"github.com/pigeonworks-llc/bean-import/pkg/statement"
)

// Result is the outcome of processing one document.
type Result struct {
	Document    string
	Entries     []beancount.Directive // in source order, duplicates included
	Skipped     []*importer.RowError
	Categorized int
	Duplicates  int
	// Err is set when the document could not be processed at all.
	Err error
}

// Pipeline processes documents for a single profile. It is immutable after
// construction and safe for concurrent use.
type Pipeline struct {
	profile   config.Profile
	builder   *importer.Builder
	engine    *categorize.Engine
	extractor *statement.Extractor
	detector  *dedup.Detector
	logger    *slog.Logger
}

// New validates profile and compiles its rules and patterns.
func New(profile config.Profile, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	logger = logger.With("profile", profile.Name)

	detector, err := dedup.New(profile.DedupConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", profile.Name, err)
	}

	p := &Pipeline{profile: profile, detector: detector, logger: logger}

	switch profile.Kind {
	case config.KindCSV:
		p.builder = &importer.Builder{
			Columns:  profile.Columns,
			Locale:   profile.Locale.Locale(),
			Account:  profile.Account,
			Currency: profile.Currency,
			Flag:     profile.Flag,
		}
		p.engine, err = categorize.NewEngine(profile.CategorizeTiers(), logger)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", profile.Name, err)
		}
	case config.KindPDF:
		p.extractor, err = statement.New(statement.Config{
			PeriodPattern:   profile.Statement.PeriodPattern,
			BalancePatterns: profile.Statement.BalancePatterns,
			Locale:          profile.Locale.Locale(),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", profile.Name, err)
		}
	}

	return p, nil
}

// Profile returns the profile the pipeline was built from.
func (p *Pipeline) Profile() config.Profile {
	return p.profile
}

// PrepareRows builds one transaction per row and categorizes it. Rows that
// cannot be built are skipped and reported in Result.Skipped; empty rows are
// skipped silently.
func (p *Pipeline) PrepareRows(document string, rows []importer.Row) *Result {
	res := &Result{Document: document}
	if p.builder == nil {
		res.Err = fmt.Errorf("profile %s does not import rows", p.profile.Name)
		return res
	}

	for _, row := range rows {
		txn, err := p.builder.Build(document, row)
		if err != nil {
			var rowErr *importer.RowError
			if !errors.As(err, &rowErr) {
				rowErr = &importer.RowError{Line: row.Line, Err: err}
			}
			if errors.Is(err, importer.ErrEmptyRow) {
				p.logger.Debug("Skipping empty row", "document", document, "line", row.Line)
				continue
			}
			p.logger.Warn("Skipping malformed row", "document", document, "line", row.Line, "error", rowErr.Err)
			res.Skipped = append(res.Skipped, rowErr)
			continue
		}

		if _, ok := p.engine.Categorize(txn, row); ok {
			res.Categorized++
		}
		res.Entries = append(res.Entries, txn)
	}

	return res
}

// PrepareText extracts the closing balance assertion of a statement. A
// statement without a recognizable period or balance yields no entries and
// no error.
func (p *Pipeline) PrepareText(document, text string) *Result {
	res := &Result{Document: document}
	if p.extractor == nil {
		res.Err = fmt.Errorf("profile %s does not import statements", p.profile.Name)
		return res
	}

	found, err := p.extractor.Extract(text)
	if errors.Is(err, statement.ErrNotFound) {
		p.logger.Warn("No closing balance found", "document", document, "reason", err)
		return res
	}
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", document, err)
		return res
	}

	bal := statement.BalanceEntry(found, p.profile.Account, p.profile.Currency,
		beancount.SourceLocation{Document: document, Line: 1})
	p.logger.Info("Found closing balance",
		"document", document,
		"end_date", found.EndDate.Format(beancount.DateLayout),
		"balance", bal.Amount.String())
	res.Entries = append(res.Entries, bal)

	return res
}

// PrepareFile reads the document at path with the profile's reader and
// prepares it. Read failures are reported in Result.Err.
func (p *Pipeline) PrepareFile(path string) *Result {
	switch p.profile.Kind {
	case config.KindCSV:
		rows, err := source.ReadFile(path, p.profile.Dialect)
		if err != nil {
			return &Result{Document: path, Err: err}
		}
		return p.PrepareRows(path, rows)
	case config.KindPDF:
		text, err := source.ExtractPDFText(path)
		if err != nil {
			return &Result{Document: path, Err: err}
		}
		return p.PrepareText(path, text)
	}
	return &Result{Document: path, Err: fmt.Errorf("unknown kind %q", p.profile.Kind)}
}

// Deduplicate marks the entries of res that match existing. existing is
// only read.
func (p *Pipeline) Deduplicate(res *Result, existing []beancount.Directive) {
	res.Duplicates = p.detector.Detect(res.Entries, existing)
	if res.Duplicates > 0 {
		p.logger.Info("Marked duplicates", "document", res.Document, "count", res.Duplicates)
	}
}

// ProcessRows prepares rows and deduplicates them against existing.
func (p *Pipeline) ProcessRows(document string, rows []importer.Row, existing []beancount.Directive) *Result {
	res := p.PrepareRows(document, rows)
	if res.Err == nil {
		p.Deduplicate(res, existing)
	}
	return res
}

// ProcessText prepares statement text and deduplicates the balance against
// existing.
func (p *Pipeline) ProcessText(document, text string, existing []beancount.Directive) *Result {
	res := p.PrepareText(document, text)
	if res.Err == nil {
		p.Deduplicate(res, existing)
	}
	return res
}
