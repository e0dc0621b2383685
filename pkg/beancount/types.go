// Package beancount provides the canonical ledger schema, a printer, a loader
// for existing ledgers and repository pattern for Beancount file operations.
package beancount

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Metadata keys set by the importer.
const (
	// DuplicateKey marks an entry that matches one already recorded.
	DuplicateKey = "__duplicate__"
	// DuplicateOfKey names the counterpart of a duplicate as "document:line".
	DuplicateOfKey = "duplicate_of"
)

// DateLayout is the Beancount date format.
const DateLayout = "2006-01-02"

// Metadata holds string key-value pairs attached to a directive.
type Metadata map[string]string

// SourceLocation points at the document and line an entry was built from.
type SourceLocation struct {
	Document string
	Line     int
}

// String returns the location as "document:line".
func (l SourceLocation) String() string {
	return fmt.Sprintf("%s:%d", l.Document, l.Line)
}

// Amount is a signed decimal number in a currency.
type Amount struct {
	Number   decimal.Decimal
	Currency string
}

// NewAmount creates an Amount.
func NewAmount(number decimal.Decimal, currency string) *Amount {
	return &Amount{Number: number, Currency: currency}
}

// Neg returns the amount with its sign inverted.
func (a Amount) Neg() *Amount {
	return &Amount{Number: a.Number.Neg(), Currency: a.Currency}
}

// String formats the amount the way Beancount prints it.
func (a Amount) String() string {
	return FormatNumber(a.Number) + " " + a.Currency
}

// FormatNumber prints d keeping its scale, so 100.00 stays "100.00".
func FormatNumber(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// Posting represents a posting in a Beancount transaction.
// Units is nil for a balancing posting that only names an account.
type Posting struct {
	Account string  // Account name (e.g., "Assets:Bank:Checking")
	Units   *Amount // Signed amount, nil when left for Beancount to infer
}

// Directive is a dated ledger entry: a *Transaction or a *Balance.
type Directive interface {
	EntryDate() time.Time
	Location() SourceLocation
	Meta() Metadata
}

// Transaction represents a Beancount transaction.
type Transaction struct {
	Date      time.Time
	Flag      string // "*" or "!"
	Payee     string // optional
	Narration string
	Currency  string
	Postings  []Posting
	Metadata  Metadata
	Source    SourceLocation
}

// EntryDate implements Directive.
func (t *Transaction) EntryDate() time.Time { return t.Date }

// Location implements Directive.
func (t *Transaction) Location() SourceLocation { return t.Source }

// Meta implements Directive. The map is created on first use.
func (t *Transaction) Meta() Metadata {
	if t.Metadata == nil {
		t.Metadata = make(Metadata)
	}
	return t.Metadata
}

// Balance is a balance assertion. Beancount checks it at the start of Date.
type Balance struct {
	Date      time.Time
	Account   string
	Amount    Amount
	Tolerance *decimal.Decimal // nil means exact comparison
	Metadata  Metadata
	Source    SourceLocation
}

// EntryDate implements Directive.
func (b *Balance) EntryDate() time.Time { return b.Date }

// Location implements Directive.
func (b *Balance) Location() SourceLocation { return b.Source }

// Meta implements Directive. The map is created on first use.
func (b *Balance) Meta() Metadata {
	if b.Metadata == nil {
		b.Metadata = make(Metadata)
	}
	return b.Metadata
}

// IsDuplicate reports whether the entry was marked as a duplicate.
func IsDuplicate(d Directive) bool {
	return d.Meta()[DuplicateKey] == "true"
}

// MarkDuplicate flags d as a duplicate of counterpart.
func MarkDuplicate(d, counterpart Directive) {
	meta := d.Meta()
	meta[DuplicateKey] = "true"
	meta[DuplicateOfKey] = counterpart.Location().String()
}

// Date truncates t to a calendar date in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of calendar days between a and b.
func DaysBetween(a, b time.Time) int {
	days := int(Date(a).Sub(Date(b)).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}
