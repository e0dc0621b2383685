// Package categorize assigns the balancing account of a single-posting
// transaction using ordered tiers of pattern rules.
package categorize

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pigeonworks-llc/bean-import/pkg/beancount"
	"github.com/pigeonworks-llc/bean-import/pkg/normalize"
)

// MatchMode selects how a rule pattern is tested against field text.
type MatchMode string

const (
	MatchSubstring MatchMode = "substring" // default
	MatchRegexp    MatchMode = "regexp"
	MatchExact     MatchMode = "exact"
)

// RuleConfig maps a pattern to the account that balances a matching transaction.
type RuleConfig struct {
	Pattern string    `yaml:"pattern"`
	Account string    `yaml:"account"`
	Match   MatchMode `yaml:"match"`
}

// TierConfig is an ordered group of rules tested against one field.
// An empty Field means the transaction narration.
type TierConfig struct {
	Name  string       `yaml:"name"`
	Field string       `yaml:"field"`
	Rules []RuleConfig `yaml:"rules"`
}

// TypeDefault maps a transaction type value to a fallback account.
type TypeDefault struct {
	Type    string `yaml:"type"`
	Account string `yaml:"account"`
}

// TypeDefaultTier builds the fallback tier that maps transaction type values
// to fixed accounts. Type values are compared exactly.
func TypeDefaultTier(field string, defaults []TypeDefault) TierConfig {
	tier := TierConfig{Name: "type-default", Field: field}
	for _, d := range defaults {
		tier.Rules = append(tier.Rules, RuleConfig{Pattern: d.Type, Account: d.Account, Match: MatchExact})
	}
	return tier
}

// Fields gives access to the raw row a transaction was built from.
// importer.Row implements it.
type Fields interface {
	Field(name string) (string, bool)
}

// Match describes the rule that categorized a transaction.
type Match struct {
	Tier    string
	Rule    int
	Pattern string
	Account string
}

type rule struct {
	cfg RuleConfig
	re  *regexp.Regexp
}

func (r rule) matches(text string) bool {
	switch r.cfg.Match {
	case MatchRegexp:
		return r.re.MatchString(text)
	case MatchExact:
		return text == r.cfg.Pattern
	default:
		return strings.Contains(text, r.cfg.Pattern)
	}
}

type tier struct {
	name  string
	field string
	rules []rule
}

// Engine evaluates tiers in order. It is immutable after construction and
// safe for concurrent use.
type Engine struct {
	tiers  []tier
	logger *slog.Logger
}

// NewEngine compiles and validates the tiers. Invalid regular expressions,
// empty patterns and malformed accounts are configuration errors.
func NewEngine(tiers []TierConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{tiers: make([]tier, 0, len(tiers)), logger: logger}
	for i, tc := range tiers {
		name := tc.Name
		if name == "" {
			name = fmt.Sprintf("tier-%d", i+1)
		}

		t := tier{name: name, field: tc.Field, rules: make([]rule, 0, len(tc.Rules))}
		for j, rc := range tc.Rules {
			if rc.Pattern == "" {
				return nil, fmt.Errorf("tier %s rule %d: empty pattern", name, j+1)
			}
			if err := beancount.ValidateAccount(rc.Account); err != nil {
				return nil, fmt.Errorf("tier %s rule %d: %w", name, j+1, err)
			}

			r := rule{cfg: rc}
			switch rc.Match {
			case "":
				r.cfg.Match = MatchSubstring
			case MatchSubstring, MatchExact:
			case MatchRegexp:
				re, err := regexp.Compile(rc.Pattern)
				if err != nil {
					return nil, fmt.Errorf("tier %s rule %d: %w", name, j+1, err)
				}
				r.re = re
			default:
				return nil, fmt.Errorf("tier %s rule %d: unknown match mode %q", name, j+1, rc.Match)
			}
			t.rules = append(t.rules, r)
		}
		e.tiers = append(e.tiers, t)
	}

	return e, nil
}

// Fields returns the row columns referenced by the tiers, in tier order.
func (e *Engine) Fields() []string {
	var names []string
	for _, t := range e.tiers {
		if t.field != "" {
			names = append(names, t.field)
		}
	}
	return names
}

// Categorize appends a balancing posting for the first matching rule and
// reports the match. Transactions that do not carry exactly one posting with
// an amount are left untouched, so running it twice is a no-op. fields may
// be nil, in which case tiers bound to a row field are skipped.
func (e *Engine) Categorize(txn *beancount.Transaction, fields Fields) (Match, bool) {
	if len(txn.Postings) != 1 || txn.Postings[0].Units == nil {
		return Match{}, false
	}

	for _, t := range e.tiers {
		text, ok := e.text(t, txn, fields)
		if !ok {
			continue
		}

		for i, r := range t.rules {
			if !r.matches(text) {
				continue
			}

			txn.Postings = append(txn.Postings, beancount.Posting{
				Account: r.cfg.Account,
				Units:   txn.Postings[0].Units.Neg(),
			})

			m := Match{Tier: t.name, Rule: i, Pattern: r.cfg.Pattern, Account: r.cfg.Account}
			e.logger.Debug("Categorized transaction",
				"location", txn.Source.String(),
				"tier", m.Tier,
				"pattern", m.Pattern,
				"account", m.Account)
			return m, true
		}
	}

	return Match{}, false
}

func (e *Engine) text(t tier, txn *beancount.Transaction, fields Fields) (string, bool) {
	if len(t.rules) == 0 {
		return "", false
	}
	if t.field == "" {
		return txn.Narration, txn.Narration != ""
	}
	if fields == nil {
		return "", false
	}

	v, ok := fields.Field(t.field)
	if !ok {
		return "", false
	}
	v = normalize.Unquote(v)
	return v, v != ""
}
