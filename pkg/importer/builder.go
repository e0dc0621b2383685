package importer

import (
	"errors"
	"fmt"

	"github.com/pigeonworks-llc/bean-import/pkg/beancount"
	"github.com/pigeonworks-llc/bean-import/pkg/normalize"
	"github.com/shopspring/decimal"
)

// ErrEmptyRow is returned for rows with no content. Callers skip them.
var ErrEmptyRow = errors.New("empty row")

// RowError records why a row was skipped.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// MetadataColumn copies a row column into transaction metadata under Key.
type MetadataColumn struct {
	Column string `yaml:"column"`
	Key    string `yaml:"key"`
}

// ColumnMap declares which columns carry which transaction fields.
// Either Amount or Credit/Debit must be set.
type ColumnMap struct {
	Date        string           `yaml:"date"`
	Narration   string           `yaml:"narration"`
	Payee       string           `yaml:"payee"`
	Amount      string           `yaml:"amount"`
	Credit      string           `yaml:"credit"`
	Debit       string           `yaml:"debit"`
	DebitSigned bool             `yaml:"debit_signed"`
	Type        string           `yaml:"type"`
	Metadata    []MetadataColumn `yaml:"metadata"`
}

// Columns returns every column name referenced by the map.
func (m ColumnMap) Columns() []string {
	var cols []string
	for _, c := range []string{m.Date, m.Narration, m.Payee, m.Amount, m.Credit, m.Debit, m.Type} {
		if c != "" {
			cols = append(cols, c)
		}
	}
	for _, mc := range m.Metadata {
		cols = append(cols, mc.Column)
	}
	return cols
}

// Validate checks that the map can produce a date, narration and amount.
func (m ColumnMap) Validate() error {
	if m.Date == "" {
		return errors.New("column map: date column is required")
	}
	if m.Narration == "" {
		return errors.New("column map: narration column is required")
	}
	if m.Amount == "" && m.Credit == "" && m.Debit == "" {
		return errors.New("column map: amount or credit/debit columns are required")
	}
	if m.Amount != "" && (m.Credit != "" || m.Debit != "") {
		return errors.New("column map: amount and credit/debit columns are mutually exclusive")
	}
	for _, mc := range m.Metadata {
		if mc.Column == "" || mc.Key == "" {
			return fmt.Errorf("column map: metadata entry %+v needs column and key", mc)
		}
		if err := beancount.ValidateMetadataKey(mc.Key); err != nil {
			return fmt.Errorf("column map: %w", err)
		}
	}
	return nil
}

// Builder builds one single-posting transaction per row.
type Builder struct {
	Columns  ColumnMap
	Locale   normalize.Locale
	Account  string
	Currency string
	Flag     string
}

// Build maps row into a Transaction with exactly one posting to b.Account.
// It never infers a second account.
func (b *Builder) Build(document string, row Row) (*beancount.Transaction, error) {
	if row.IsEmpty() {
		return nil, &RowError{Line: row.Line, Err: ErrEmptyRow}
	}

	date, err := b.Locale.ParseDate(row.Value(b.Columns.Date))
	if err != nil {
		return nil, &RowError{Line: row.Line, Err: err}
	}

	amount, err := b.amount(row)
	if err != nil {
		return nil, &RowError{Line: row.Line, Err: err}
	}

	flag := b.Flag
	if flag == "" {
		flag = "*"
	}

	txn := &beancount.Transaction{
		Date:      date,
		Flag:      flag,
		Payee:     normalize.Unquote(row.Value(b.Columns.Payee)),
		Narration: normalize.Unquote(row.Value(b.Columns.Narration)),
		Currency:  b.Currency,
		Postings: []beancount.Posting{
			{Account: b.Account, Units: beancount.NewAmount(amount, b.Currency)},
		},
		Source: beancount.SourceLocation{Document: document, Line: row.Line},
	}

	for _, mc := range b.Columns.Metadata {
		if v := normalize.Unquote(row.Value(mc.Column)); v != "" {
			txn.Meta()[mc.Key] = v
		}
	}

	return txn, nil
}

func (b *Builder) amount(row Row) (decimal.Decimal, error) {
	if b.Columns.Amount != "" {
		return b.Locale.ParseAmount(row.Value(b.Columns.Amount))
	}
	return b.Locale.CreditOrDebit(row.Value(b.Columns.Credit), row.Value(b.Columns.Debit), b.Columns.DebitSigned)
}
