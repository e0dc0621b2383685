// Package statement extracts the closing balance of a paginated bank
// statement from its extracted text.
package statement

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pigeonworks-llc/bean-import/pkg/beancount"
	"github.com/pigeonworks-llc/bean-import/pkg/normalize"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when the statement end date or closing balance
// cannot be located. It is a soft failure: the document yields no balance.
var ErrNotFound = errors.New("statement balance not found")

// Default patterns for Norwegian statements. The first capture group holds
// the period end date or the balance figure.
var (
	DefaultPeriodPattern = `perioden\s+\d{2}\.\d{2}\.\d{4}\s+-\s+(\d{2}\.\d{2}\.\d{4})`

	// Most specific first.
	DefaultBalancePatterns = []string{
		`SaldoiDeresfavør\s*([\d.,]+)`,
		`Saldo\s+i\s+Deres\s+favør\s*([\d.,]+)`,
		`Saldo.*?(\d[\d.,]+)`,
		`Saldo\s+kr\s*([\d.,]+)`,
	}
)

// Config configures an Extractor.
type Config struct {
	PeriodPattern   string
	BalancePatterns []string
	Locale          normalize.Locale
}

// Result is the statement end date and the closing balance.
type Result struct {
	EndDate time.Time
	Balance decimal.Decimal
}

// Extractor finds the period end date and the closing balance in statement text.
type Extractor struct {
	period   *regexp.Regexp
	balances []*regexp.Regexp
	locale   normalize.Locale
	logger   *slog.Logger
}

// New compiles the configured patterns. Empty patterns fall back to the defaults.
func New(cfg Config, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	periodPattern := cfg.PeriodPattern
	if periodPattern == "" {
		periodPattern = DefaultPeriodPattern
	}
	period, err := compileCapturing(periodPattern)
	if err != nil {
		return nil, fmt.Errorf("period pattern: %w", err)
	}

	balancePatterns := cfg.BalancePatterns
	if len(balancePatterns) == 0 {
		balancePatterns = DefaultBalancePatterns
	}
	balances := make([]*regexp.Regexp, 0, len(balancePatterns))
	for _, p := range balancePatterns {
		re, err := compileCapturing(p)
		if err != nil {
			return nil, fmt.Errorf("balance pattern: %w", err)
		}
		balances = append(balances, re)
	}

	locale := cfg.Locale
	if locale.DateLayout == "" {
		locale = normalize.Norwegian
	}

	return &Extractor{period: period, balances: balances, locale: locale, logger: logger}, nil
}

func compileCapturing(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("%q has no capture group", pattern)
	}
	return re, nil
}

// Extract scans the whole text. The latest period end date wins, and the
// balance figure that occurs last in the document wins. ErrNotFound is
// returned when either is missing; a balance figure that cannot be parsed
// is ErrMalformedAmount.
func (e *Extractor) Extract(text string) (Result, error) {
	endDate, ok := e.endDate(text)
	if !ok {
		return Result{}, fmt.Errorf("%w: no statement period end date", ErrNotFound)
	}

	raw, ok := e.lastBalance(text)
	if !ok {
		return Result{}, fmt.Errorf("%w: no balance figure", ErrNotFound)
	}

	balance, err := e.locale.ParseAmount(strings.TrimRight(raw, ".,"))
	if err != nil {
		return Result{}, fmt.Errorf("closing balance: %w", err)
	}

	return Result{EndDate: endDate, Balance: balance}, nil
}

func (e *Extractor) endDate(text string) (time.Time, bool) {
	var latest time.Time
	found := false

	for _, m := range e.period.FindAllStringSubmatch(text, -1) {
		d, err := e.locale.ParseDate(m[1])
		if err != nil {
			e.logger.Debug("Skipping unparseable period end date", "date", m[1], "error", err)
			continue
		}
		if !found || d.After(latest) {
			latest = d
			found = true
		}
	}

	return latest, found
}

// lastBalance returns the captured figure with the greatest offset in text.
// When two labels capture the same figure the more specific one wins.
func (e *Extractor) lastBalance(text string) (string, bool) {
	best := -1
	value := ""

	for _, re := range e.balances {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2], loc[3]
			if start < 0 {
				continue
			}
			if start > best {
				best = start
				value = text[start:end]
			}
		}
	}

	return value, best >= 0
}

// BalanceEntry builds the assertion for a statement: dated the day after the
// end date, because Beancount checks balances at the start of the day.
func BalanceEntry(res Result, account, currency string, source beancount.SourceLocation) *beancount.Balance {
	return &beancount.Balance{
		Date:    res.EndDate.AddDate(0, 0, 1),
		Account: account,
		Amount:  beancount.Amount{Number: res.Balance, Currency: currency},
		Source:  source,
	}
}
