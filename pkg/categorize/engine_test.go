package categorize

import (
	"testing"

	"github.com/pigeonworks-llc/bean-import/pkg/beancount"
	"github.com/shopspring/decimal"
)

type mapFields map[string]string

func (m mapFields) Field(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func newTxn(narration, amount string) *beancount.Transaction {
	return &beancount.Transaction{
		Flag:      "*",
		Narration: narration,
		Currency:  "NOK",
		Postings: []beancount.Posting{
			{Account: "Assets:Bank:Checking", Units: beancount.NewAmount(decimal.RequireFromString(amount), "NOK")},
		},
	}
}

func mustEngine(t *testing.T, tiers []TierConfig) *Engine {
	t.Helper()
	e, err := NewEngine(tiers, nil)
	if err != nil {
		t.Fatalf("NewEngine() unexpected error: %v", err)
	}
	return e
}

func TestCategorizeNarrationTier(t *testing.T) {
	e := mustEngine(t, []TierConfig{
		{Rules: []RuleConfig{{Pattern: "KIWI", Account: "Expenses:Groceries"}}},
		{},
		{},
	})
	txn := newTxn("KIWI OSLO", "-100")

	m, ok := e.Categorize(txn, nil)
	if !ok {
		t.Fatal("Categorize() expected a match")
	}
	if m.Account != "Expenses:Groceries" || m.Tier != "tier-1" || m.Rule != 0 {
		t.Errorf("Match = %+v", m)
	}

	if len(txn.Postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(txn.Postings))
	}
	first, second := txn.Postings[0], txn.Postings[1]
	if first.Account != "Assets:Bank:Checking" || !first.Units.Number.Equal(decimal.NewFromInt(-100)) {
		t.Errorf("first posting = %s %s", first.Account, first.Units)
	}
	if second.Account != "Expenses:Groceries" || !second.Units.Number.Equal(decimal.NewFromInt(100)) {
		t.Errorf("second posting = %s %s", second.Account, second.Units)
	}
	if second.Units.Currency != "NOK" {
		t.Errorf("balancing currency = %q", second.Units.Currency)
	}
	if !first.Units.Number.Add(second.Units.Number).IsZero() {
		t.Error("postings must sum to zero")
	}
}

func TestCategorizeTierPrecedence(t *testing.T) {
	tiers := []TierConfig{
		{Name: "narration", Rules: []RuleConfig{
			{Pattern: "Overføring", Account: "Assets:Bank:Savings"},
			{Pattern: "Over", Account: "Expenses:Unused"},
		}},
		{Name: "from-account", Field: "Fra konto", Rules: []RuleConfig{
			{Pattern: "12345678901", Account: "Income:Salary"},
		}},
		{Name: "to-account", Field: "Til konto", Rules: []RuleConfig{
			{Pattern: "98765432109", Account: "Assets:Bank:Savings"},
		}},
		TypeDefaultTier("Type", []TypeDefault{
			{Type: "Innskudd", Account: "Income:Unknown"},
			{Type: "Kjøp", Account: "Expenses:Unknown"},
			{Type: "Retur", Account: "Expenses:Refund"},
		}),
	}
	e := mustEngine(t, tiers)

	tests := []struct {
		name      string
		narration string
		fields    Fields
		account   string
		tier      string
	}{
		{"first rule in tier wins", "Overføring til sparing", nil, "Assets:Bank:Savings", "narration"},
		{"narration beats row fields", "Overføring", mapFields{"Fra konto": "12345678901"}, "Assets:Bank:Savings", "narration"},
		{"from account tier", "Lønn januar", mapFields{"Fra konto": "12345678901", "Til konto": "98765432109"}, "Income:Salary", "from-account"},
		{"empty field skips tier", "Lønn", mapFields{"Fra konto": "", "Til konto": "98765432109"}, "Assets:Bank:Savings", "to-account"},
		{"quoted field", "Lønn", mapFields{"Fra konto": `"12345678901"`}, "Income:Salary", "from-account"},
		{"type default", "Netflix", mapFields{"Type": "Kjøp"}, "Expenses:Unknown", "type-default"},
		{"type default is exact", "Netflix", mapFields{"Type": "Kjøp korrigert"}, "", ""},
		{"absent field", "Netflix", mapFields{}, "", ""},
		{"no fields", "Netflix", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := newTxn(tt.narration, "-50")
			m, ok := e.Categorize(txn, tt.fields)

			if tt.account == "" {
				if ok {
					t.Errorf("Categorize() matched %+v, expected no match", m)
				}
				if len(txn.Postings) != 1 {
					t.Errorf("unmatched transaction has %d postings, expected 1", len(txn.Postings))
				}
				return
			}

			if !ok {
				t.Fatal("Categorize() expected a match")
			}
			if m.Account != tt.account || m.Tier != tt.tier {
				t.Errorf("Match = %s/%s, expected %s/%s", m.Tier, m.Account, tt.tier, tt.account)
			}
			if txn.Postings[1].Account != tt.account {
				t.Errorf("balancing account = %q", txn.Postings[1].Account)
			}
		})
	}
}

func TestCategorizeMatchModes(t *testing.T) {
	e := mustEngine(t, []TierConfig{{Rules: []RuleConfig{
		{Pattern: `^VIPPS\s+\*`, Account: "Expenses:Transfers", Match: MatchRegexp},
		{Pattern: "REMA 1000", Account: "Expenses:Groceries", Match: MatchExact},
		{Pattern: "kiwi", Account: "Expenses:Lowercase"},
	}}})

	tests := []struct {
		narration string
		account   string
	}{
		{"VIPPS *Ola", "Expenses:Transfers"},
		{"Betaling VIPPS *Ola", ""},
		{"REMA 1000", "Expenses:Groceries"},
		{"REMA 1000 GRØNLAND", ""},
		{"KIWI OSLO", ""},
		{"kiwi oslo", "Expenses:Lowercase"},
	}

	for _, tt := range tests {
		t.Run(tt.narration, func(t *testing.T) {
			m, ok := e.Categorize(newTxn(tt.narration, "-10"), nil)
			if ok != (tt.account != "") || m.Account != tt.account {
				t.Errorf("Categorize(%q) = %q, %v; expected %q", tt.narration, m.Account, ok, tt.account)
			}
		})
	}
}

func TestCategorizeIdempotent(t *testing.T) {
	e := mustEngine(t, []TierConfig{{Rules: []RuleConfig{{Pattern: "KIWI", Account: "Expenses:Groceries"}}}})
	txn := newTxn("KIWI OSLO", "-100")

	if _, ok := e.Categorize(txn, nil); !ok {
		t.Fatal("first Categorize() expected a match")
	}
	if _, ok := e.Categorize(txn, nil); ok {
		t.Error("second Categorize() must not match a balanced transaction")
	}
	if len(txn.Postings) != 2 {
		t.Errorf("expected 2 postings after re-running, got %d", len(txn.Postings))
	}
}

func TestCategorizeDeterministic(t *testing.T) {
	tiers := []TierConfig{{Rules: []RuleConfig{
		{Pattern: "A", Account: "Expenses:A"},
		{Pattern: "B", Account: "Expenses:B"},
	}}}
	e := mustEngine(t, tiers)

	for i := 0; i < 20; i++ {
		m, _ := e.Categorize(newTxn("AB", "-1"), nil)
		if m.Account != "Expenses:A" {
			t.Fatalf("run %d matched %q, expected Expenses:A", i, m.Account)
		}
	}
}

func TestCategorizeSkipsUnamountedPosting(t *testing.T) {
	e := mustEngine(t, []TierConfig{{Rules: []RuleConfig{{Pattern: "KIWI", Account: "Expenses:Groceries"}}}})
	txn := &beancount.Transaction{Narration: "KIWI", Postings: []beancount.Posting{{Account: "Assets:Bank"}}}

	if _, ok := e.Categorize(txn, nil); ok {
		t.Error("a posting without amount must not be categorized")
	}
}

func TestNewEngineErrors(t *testing.T) {
	tests := []struct {
		name string
		rule RuleConfig
	}{
		{"bad regexp", RuleConfig{Pattern: "(", Account: "Expenses:X", Match: MatchRegexp}},
		{"empty pattern", RuleConfig{Account: "Expenses:X"}},
		{"unknown root", RuleConfig{Pattern: "x", Account: "Spending:Food"}},
		{"root only", RuleConfig{Pattern: "x", Account: "Expenses"}},
		{"lowercase component", RuleConfig{Pattern: "x", Account: "Expenses:food"}},
		{"unknown mode", RuleConfig{Pattern: "x", Account: "Expenses:Food", Match: "glob"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine([]TierConfig{{Rules: []RuleConfig{tt.rule}}}, nil); err == nil {
				t.Error("NewEngine() expected error")
			}
		})
	}
}

func TestEngineFields(t *testing.T) {
	e := mustEngine(t, []TierConfig{{}, {Field: "Fra konto"}, {Field: "Til konto"}})
	got := e.Fields()
	if len(got) != 2 || got[0] != "Fra konto" || got[1] != "Til konto" {
		t.Errorf("Fields() = %v", got)
	}
}
