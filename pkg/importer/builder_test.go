package importer

import (
	"errors"
	"testing"
	"time"

	"github.com/pigeonworks-llc/bean-import/pkg/normalize"
	"github.com/shopspring/decimal"
)

var sparebankHeader = []string{"Dato", "Beskrivelse", "Rentedato", "Inn", "Ut", "Til konto", "Fra konto", ""}

func newSparebankBuilder() *Builder {
	return &Builder{
		Columns: ColumnMap{
			Date:      "Dato",
			Narration: "Beskrivelse",
			Credit:    "Inn",
			Debit:     "Ut",
			Metadata: []MetadataColumn{
				{Column: "Rentedato", Key: "rentedato"},
				{Column: "Til konto", Key: "to_account"},
				{Column: "Fra konto", Key: "from_account"},
			},
		},
		Locale:   normalize.Norwegian,
		Account:  "Assets:Bank:SpareBank1:Checking",
		Currency: "NOK",
	}
}

func TestBuild(t *testing.T) {
	b := newSparebankBuilder()
	row := NewRow(2, sparebankHeader, []string{"15.01.2024", "KIWI OSLO", "15.01.2024", "", "-1.234,50", "", "12345678901", ""})

	txn, err := b.Build("statement.csv", row)
	if err != nil {
		t.Fatalf("Build() unexpected error: %v", err)
	}

	if !txn.Date.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v, expected 2024-01-15", txn.Date)
	}
	if txn.Narration != "KIWI OSLO" {
		t.Errorf("Narration = %q, expected %q", txn.Narration, "KIWI OSLO")
	}
	if txn.Flag != "*" {
		t.Errorf("Flag = %q, expected default *", txn.Flag)
	}
	if len(txn.Postings) != 1 {
		t.Fatalf("Build() produced %d postings, expected exactly 1", len(txn.Postings))
	}
	p := txn.Postings[0]
	if p.Account != "Assets:Bank:SpareBank1:Checking" {
		t.Errorf("posting account = %q", p.Account)
	}
	if !p.Units.Number.Equal(decimal.RequireFromString("-1234.5")) || p.Units.Currency != "NOK" {
		t.Errorf("posting units = %s, expected -1234.5 NOK", p.Units)
	}
	if txn.Source.Document != "statement.csv" || txn.Source.Line != 2 {
		t.Errorf("Source = %+v", txn.Source)
	}

	if txn.Metadata["from_account"] != "12345678901" {
		t.Errorf("from_account metadata = %q", txn.Metadata["from_account"])
	}
	if _, ok := txn.Metadata["to_account"]; ok {
		t.Error("empty Til konto must not produce a to_account metadata key")
	}
	if txn.Metadata["rentedato"] != "15.01.2024" {
		t.Errorf("rentedato metadata = %q", txn.Metadata["rentedato"])
	}
}

func TestBuildSingleAmountColumn(t *testing.T) {
	b := &Builder{
		Columns:  ColumnMap{Date: "Date", Narration: "Text", Amount: "Amount", Payee: "Merchant", Type: "Type"},
		Locale:   normalize.Norwegian,
		Account:  "Liabilities:CreditCard:BankNorwegian",
		Currency: "NOK",
		Flag:     "!",
	}
	row := NewRow(5, []string{"Date", "Text", "Type", "Merchant", "Amount"},
		[]string{"03.03.2024", `"Netflix.com"`, "Kjøp", "NETFLIX", "-129,00"})

	txn, err := b.Build("card.csv", row)
	if err != nil {
		t.Fatalf("Build() unexpected error: %v", err)
	}
	if txn.Flag != "!" {
		t.Errorf("Flag = %q, expected !", txn.Flag)
	}
	if txn.Narration != "Netflix.com" {
		t.Errorf("quoted narration not stripped: %q", txn.Narration)
	}
	if txn.Payee != "NETFLIX" {
		t.Errorf("Payee = %q", txn.Payee)
	}
	if !txn.Postings[0].Units.Number.Equal(decimal.RequireFromString("-129")) {
		t.Errorf("amount = %s", txn.Postings[0].Units)
	}
	if len(txn.Metadata) != 0 {
		t.Errorf("expected no metadata, got %v", txn.Metadata)
	}
}

func TestBuildErrors(t *testing.T) {
	b := newSparebankBuilder()

	tests := []struct {
		name     string
		values   []string
		expected error
	}{
		{"empty row", []string{"", "", "", "", "", "", "", ""}, ErrEmptyRow},
		{"quoted empty row", []string{`""`, `""`, "", "", "", "", "", ""}, ErrEmptyRow},
		{"bad date", []string{"2024-01-15", "KIWI", "", "", "10,00", "", "", ""}, normalize.ErrMalformedDate},
		{"bad amount", []string{"15.01.2024", "KIWI", "", "n/a", "", "", "", ""}, normalize.ErrMalformedAmount},
		{"short record", []string{"15.01.2024"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build("x.csv", NewRow(7, sparebankHeader, tt.values))
			if tt.expected == nil {
				if err != nil {
					t.Errorf("Build() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.expected) {
				t.Fatalf("Build() error = %v, expected %v", err, tt.expected)
			}
			var rowErr *RowError
			if !errors.As(err, &rowErr) || rowErr.Line != 7 {
				t.Errorf("expected RowError for line 7, got %v", err)
			}
		})
	}
}

func TestRowField(t *testing.T) {
	row := NewRow(1, []string{"A", "B", "C"}, []string{"1", ""})

	if v, ok := row.Field("A"); !ok || v != "1" {
		t.Errorf(`Field("A") = %q, %v`, v, ok)
	}
	if v, ok := row.Field("B"); !ok || v != "" {
		t.Errorf(`Field("B") = %q, %v; expected present and empty`, v, ok)
	}
	if _, ok := row.Field("C"); ok {
		t.Error(`Field("C") is missing from the record and must be absent`)
	}
	if _, ok := row.Field("Z"); ok {
		t.Error(`Field("Z") was never declared and must be absent`)
	}
	if _, ok := row.Field(""); ok {
		t.Error(`Field("") must be absent`)
	}
}

func TestColumnMapValidate(t *testing.T) {
	tests := []struct {
		name    string
		m       ColumnMap
		wantErr bool
	}{
		{"credit debit", ColumnMap{Date: "d", Narration: "n", Credit: "c", Debit: "x"}, false},
		{"single amount", ColumnMap{Date: "d", Narration: "n", Amount: "a"}, false},
		{"missing date", ColumnMap{Narration: "n", Amount: "a"}, true},
		{"missing amount", ColumnMap{Date: "d", Narration: "n"}, true},
		{"both amount styles", ColumnMap{Date: "d", Narration: "n", Amount: "a", Credit: "c"}, true},
		{"bad metadata", ColumnMap{Date: "d", Narration: "n", Amount: "a", Metadata: []MetadataColumn{{Column: "x"}}}, true},
		{"metadata key", ColumnMap{Date: "d", Narration: "n", Amount: "a", Metadata: []MetadataColumn{{Column: "x", Key: "to_account"}}}, false},
		{"capitalized metadata key", ColumnMap{Date: "d", Narration: "n", Amount: "a", Metadata: []MetadataColumn{{Column: "x", Key: "ToAccount"}}}, true},
		{"metadata key with space", ColumnMap{Date: "d", Narration: "n", Amount: "a", Metadata: []MetadataColumn{{Column: "x", Key: "to account"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
