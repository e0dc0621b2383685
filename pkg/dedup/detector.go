// Package dedup marks imported entries that already exist in the ledger.
//
// Matching is fuzzy: dates may differ by a few days (booking vs. value date)
// and amounts by a small tolerance. Marked entries stay in the output; the
// caller decides whether to drop them.
package dedup

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/pigeonworks-llc/bean-import/pkg/beancount"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EpsilonMode selects how the amount tolerance is applied.
type EpsilonMode string

const (
	// Relative tolerates |a-b| <= epsilon * max(|a|, |b|).
	Relative EpsilonMode = "relative"
	// Absolute tolerates |a-b| <= epsilon.
	Absolute EpsilonMode = "absolute"
)

// Config controls which existing entries count as the same event.
type Config struct {
	// WindowDays bounds the candidate search on both sides of an entry's date.
	WindowDays int `yaml:"window_days"`
	// MaxDateDeltaDays is the largest date difference two matching entries may have.
	MaxDateDeltaDays int             `yaml:"max_date_delta_days"`
	Epsilon          decimal.Decimal `yaml:"epsilon"`
	EpsilonMode      EpsilonMode     `yaml:"epsilon_mode"`
}

// DefaultConfig returns a 3 day window, 2 days of date slack and a 5%
// relative amount tolerance.
func DefaultConfig() Config {
	return Config{
		WindowDays:       3,
		MaxDateDeltaDays: 2,
		Epsilon:          decimal.RequireFromString("0.05"),
		EpsilonMode:      Relative,
	}
}

// UnmarshalYAML decodes on top of DefaultConfig, so keys that are left out
// keep their default values.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain Config
	cfg := plain(DefaultConfig())
	if err := value.Decode(&cfg); err != nil {
		return err
	}
	*c = Config(cfg)
	return nil
}

// Validate rejects negative bounds and unknown modes.
func (c Config) Validate() error {
	if c.WindowDays < 0 {
		return fmt.Errorf("dedup: window_days must not be negative, got %d", c.WindowDays)
	}
	if c.MaxDateDeltaDays < 0 {
		return fmt.Errorf("dedup: max_date_delta_days must not be negative, got %d", c.MaxDateDeltaDays)
	}
	if c.Epsilon.IsNegative() {
		return fmt.Errorf("dedup: epsilon must not be negative, got %s", c.Epsilon)
	}
	switch c.EpsilonMode {
	case "", Relative, Absolute:
	default:
		return fmt.Errorf("dedup: unknown epsilon_mode %q", c.EpsilonMode)
	}
	return nil
}

// Detector compares new entries with existing ones. It holds no state
// between calls.
type Detector struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Detector. An empty EpsilonMode means Relative.
func New(cfg Config, logger *slog.Logger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.EpsilonMode == "" {
		cfg.EpsilonMode = Relative
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{cfg: cfg, logger: logger}, nil
}

// Config returns the effective configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect marks every entry of newEntries that matches an existing entry and
// returns the number of entries it marked. Existing entries are searched in
// chronological order (stable for equal dates) and the first match wins.
// existing is not modified. Entries already marked are left alone.
func (d *Detector) Detect(newEntries, existing []beancount.Directive) int {
	if len(newEntries) == 0 || len(existing) == 0 {
		return 0
	}

	sorted := slices.Clone(existing)
	slices.SortStableFunc(sorted, func(a, b beancount.Directive) int {
		return beancount.Date(a.EntryDate()).Compare(beancount.Date(b.EntryDate()))
	})

	window := time.Duration(d.cfg.WindowDays) * 24 * time.Hour
	marked := 0

	for _, entry := range newEntries {
		if beancount.IsDuplicate(entry) {
			continue
		}

		date := beancount.Date(entry.EntryDate())
		lo, hi := date.Add(-window), date.Add(window)

		start := sort.Search(len(sorted), func(i int) bool {
			return !beancount.Date(sorted[i].EntryDate()).Before(lo)
		})

		for _, candidate := range sorted[start:] {
			if beancount.Date(candidate.EntryDate()).After(hi) {
				break
			}
			if !d.Same(entry, candidate) {
				continue
			}

			beancount.MarkDuplicate(entry, candidate)
			marked++
			d.logger.Debug("Marked duplicate",
				"location", entry.Location().String(),
				"duplicate_of", candidate.Location().String())
			break
		}
	}

	return marked
}

// Same reports whether a and b describe the same real-world event.
// Transactions are compared on their Assets and Liabilities postings, or on
// their first posting when neither has one. A Balance only matches another
// Balance.
func (d *Detector) Same(a, b beancount.Directive) bool {
	if beancount.DaysBetween(a.EntryDate(), b.EntryDate()) > d.cfg.MaxDateDeltaDays {
		return false
	}

	switch x := a.(type) {
	case *beancount.Transaction:
		y, ok := b.(*beancount.Transaction)
		return ok && d.sameTransaction(x, y)
	case *beancount.Balance:
		y, ok := b.(*beancount.Balance)
		return ok &&
			x.Account == y.Account &&
			x.Amount.Currency == y.Amount.Currency &&
			d.close(x.Amount.Number, y.Amount.Number)
	}
	return false
}

type postingKey struct {
	account  string
	currency string
}

func balanceSheetAmounts(txn *beancount.Transaction) map[postingKey]decimal.Decimal {
	amounts := make(map[postingKey]decimal.Decimal)
	for _, p := range txn.Postings {
		if p.Units == nil || !beancount.IsBalanceSheet(p.Account) {
			continue
		}
		key := postingKey{account: p.Account, currency: p.Units.Currency}
		amounts[key] = amounts[key].Add(p.Units.Number)
	}
	return amounts
}

// firstPostingAmount keys the first posting that has units. The importer
// always puts the statement account there.
func firstPostingAmount(txn *beancount.Transaction) map[postingKey]decimal.Decimal {
	for _, p := range txn.Postings {
		if p.Units != nil {
			return map[postingKey]decimal.Decimal{
				{account: p.Account, currency: p.Units.Currency}: p.Units.Number,
			}
		}
	}
	return nil
}

// sameTransaction requires at least one shared (account, currency) key and
// every shared key to agree within epsilon.
func (d *Detector) sameTransaction(a, b *beancount.Transaction) bool {
	amountsA := balanceSheetAmounts(a)
	amountsB := balanceSheetAmounts(b)
	if len(amountsA) == 0 && len(amountsB) == 0 {
		amountsA, amountsB = firstPostingAmount(a), firstPostingAmount(b)
	}

	shared := false
	for key, numA := range amountsA {
		numB, ok := amountsB[key]
		if !ok {
			continue
		}
		if !d.close(numA, numB) {
			return false
		}
		shared = true
	}
	return shared
}

func (d *Detector) close(a, b decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	if d.cfg.EpsilonMode == Absolute {
		return diff.LessThanOrEqual(d.cfg.Epsilon)
	}
	scale := decimal.Max(a.Abs(), b.Abs())
	return diff.LessThanOrEqual(d.cfg.Epsilon.Mul(scale))
}
