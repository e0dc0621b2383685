package beancount

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const ledger = `option "title" "Household"
2020-01-01 open Assets:Bank:Checking NOK
2020-01-01 open Expenses:Groceries

; 2024-01-09 * "commented out"
;   Assets:Bank:Checking  -1.00 NOK

2024-01-10 * "Kiwi" "KIWI OSLO"
  source: "bank"
  Assets:Bank:Checking           -1,100.00 NOK
  ; a comment inside the entry
  ! Expenses:Groceries            1,100.00 NOK

2024-01-11 txn "Transfer"
  Assets:Bank:Checking          -500 NOK
  Assets:Bank:Savings

2024-01-12 price USD 10.50 NOK

2024-01-15 * "Stock"
  Assets:Broker:ACME    10 ACME {100.00 NOK}
  Assets:Bank:Checking  (2 * 500) NOK

2024-02-01 balance Assets:Bank:Checking   12345.67 NOK
`

func TestParse(t *testing.T) {
	entries, err := Parse(strings.NewReader(ledger), "main.beancount")
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("Parse() returned %d entries, expected 4", len(entries))
	}

	kiwi := entries[0].(*Transaction)
	if kiwi.Payee != "Kiwi" || kiwi.Narration != "KIWI OSLO" {
		t.Errorf("payee/narration = %q/%q", kiwi.Payee, kiwi.Narration)
	}
	if kiwi.Source.Line != 8 || kiwi.Source.Document != "main.beancount" {
		t.Errorf("Source = %s, expected main.beancount:8", kiwi.Source)
	}
	if kiwi.Metadata["source"] != "bank" {
		t.Errorf("metadata = %v", kiwi.Metadata)
	}
	if len(kiwi.Postings) != 2 || !kiwi.Postings[0].Units.Number.Equal(decimal.RequireFromString("-1100")) {
		t.Errorf("postings = %+v", kiwi.Postings)
	}
	if kiwi.Postings[1].Account != "Expenses:Groceries" {
		t.Errorf("flagged posting account = %q", kiwi.Postings[1].Account)
	}

	transfer := entries[1].(*Transaction)
	if transfer.Flag != "*" || transfer.Narration != "Transfer" {
		t.Errorf("txn keyword: flag %q narration %q", transfer.Flag, transfer.Narration)
	}
	if len(transfer.Postings) != 2 || transfer.Postings[1].Units != nil {
		t.Errorf("elided posting amount must be nil: %+v", transfer.Postings)
	}

	stock := entries[2].(*Transaction)
	if stock.Postings[0].Units == nil || stock.Postings[0].Units.Currency != "ACME" {
		t.Errorf("units before cost not parsed: %+v", stock.Postings[0])
	}
	if stock.Postings[1].Units != nil {
		t.Error("arithmetic amount must leave the posting without units")
	}

	if _, ok := entries[3].(*Balance); !ok {
		t.Errorf("last entry is %T, expected *Balance", entries[3])
	}
}

func TestParseFileIncludes(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	main := write("main.beancount", `include "2024/*.beancount"
include "main.beancount"
`)
	write("2024/2024-01.beancount", "2024-01-10 * \"A\"\n  Assets:Bank:Checking  -1 NOK\n")
	write("2024/2024-02.beancount", "2024-02-10 * \"B\"\n  Assets:Bank:Checking  -2 NOK\n")

	entries, err := ParseFile(main)
	if err != nil {
		t.Fatalf("ParseFile() unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ParseFile() returned %d entries, expected 2", len(entries))
	}
	if !strings.HasSuffix(entries[1].Location().Document, "2024-02.beancount") {
		t.Errorf("second entry from %s", entries[1].Location())
	}

	if _, err := ParseFile(filepath.Join(dir, "missing.beancount")); err == nil {
		t.Error("ParseFile() expected error for missing file")
	}
}

func TestValidateAccount(t *testing.T) {
	tests := []struct {
		account string
		valid   bool
	}{
		{"Assets:Bank:SpareBank1:Checking", true},
		{"Expenses:Mat:Dagligvarer", true},
		{"Income:Lønn", true},
		{"Liabilities:Credit-Card", true},
		{"Assets", false},
		{"Bank:Checking", false},
		{"Expenses:groceries", false},
		{"Expenses::Food", false},
		{"Expenses:Food Stuff", false},
	}

	for _, tt := range tests {
		t.Run(tt.account, func(t *testing.T) {
			err := ValidateAccount(tt.account)
			if (err == nil) != tt.valid {
				t.Errorf("ValidateAccount(%q) error = %v, expected valid %v", tt.account, err, tt.valid)
			}
		})
	}
}

func TestIsBalanceSheet(t *testing.T) {
	if !IsBalanceSheet("Assets:Bank") || !IsBalanceSheet("Liabilities:Card") {
		t.Error("Assets and Liabilities are balance sheet accounts")
	}
	if IsBalanceSheet("Expenses:Food") || IsBalanceSheet("AssetsX:Bank") {
		t.Error("only Assets: and Liabilities: prefixes are balance sheet accounts")
	}
}

func TestValidateMetadataKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"from_account", true},
		{"rentedato", true},
		{"bankRef-2", true},
		{"ToAccount", false},
		{"_private", false},
		{"2nd", false},
		{"to account", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateMetadataKey(tt.key)
			if (err == nil) != tt.valid {
				t.Errorf("ValidateMetadataKey(%q) error = %v, expected valid %v", tt.key, err, tt.valid)
			}
		})
	}
}
