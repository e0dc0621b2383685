package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var sparebankDialect = Dialect{
	Delimiter: ";",
	Encoding:  "utf-8-sig",
	Header:    []string{"Dato", "Beskrivelse", "Rentedato", "Inn", "Ut", "Til konto", "Fra konto", ""},
}

const sparebankCSV = "\ufeffDato;Beskrivelse;Rentedato;Inn;Ut;Til konto;Fra konto;\n" +
	"02.01.2024;\"KIWI OSLO\";02.01.2024;;-250,00;;;\n" +
	"\n" +
	"05.01.2024;\"Lønn\njanuar\";05.01.2024;30.000,00;;;12345678901;\n" +
	"06.01.2024;Husleie;06.01.2024;;-12.000,00;98765432109;;\n"

func TestReadRows(t *testing.T) {
	rows, err := ReadRows(strings.NewReader(sparebankCSV), sparebankDialect)
	if err != nil {
		t.Fatalf("ReadRows() unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("ReadRows() returned %d rows, expected 3", len(rows))
	}

	tests := []struct {
		row      int
		line     int
		column   string
		expected string
	}{
		{0, 2, "Dato", "02.01.2024"},
		{0, 2, "Beskrivelse", "KIWI OSLO"},
		{0, 2, "Ut", "-250,00"},
		{1, 4, "Beskrivelse", "Lønn\njanuar"},
		{1, 4, "Fra konto", "12345678901"},
		{2, 6, "Til konto", "98765432109"},
	}

	for _, tt := range tests {
		r := rows[tt.row]
		if r.Line != tt.line {
			t.Errorf("row %d Line = %d, expected %d", tt.row, r.Line, tt.line)
		}
		if got := r.Value(tt.column); got != tt.expected {
			t.Errorf("row %d %s = %q, expected %q", tt.row, tt.column, got, tt.expected)
		}
	}

	if got := rows[0].Names()[0]; got != "Dato" {
		t.Errorf("first column = %q, BOM not stripped", got)
	}
}

func TestReadRowsHeaderMismatch(t *testing.T) {
	_, err := ReadRows(strings.NewReader("Date;Text;Amount\n01.01.2024;x;1\n"), sparebankDialect)
	if !errors.Is(err, ErrHeaderMismatch) {
		t.Errorf("ReadRows() error = %v, expected ErrHeaderMismatch", err)
	}
}

func TestReadRowsWithoutExpectedHeader(t *testing.T) {
	rows, err := ReadRows(strings.NewReader("Date,Text,Amount\n01.01.2024,x,\"1,5\"\n"), Dialect{})
	if err != nil {
		t.Fatalf("ReadRows() unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].Value("Amount") != "1,5" {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestReadRowsLegacyEncoding(t *testing.T) {
	// "Lønn" in Windows-1252.
	input := []byte("Dato;Beskrivelse\n01.01.2024;L\xf8nn\n")

	rows, err := ReadRows(strings.NewReader(string(input)), Dialect{Delimiter: ";", Encoding: "windows-1252"})
	if err != nil {
		t.Fatalf("ReadRows() unexpected error: %v", err)
	}
	if got := rows[0].Value("Beskrivelse"); got != "Lønn" {
		t.Errorf("Beskrivelse = %q, expected %q", got, "Lønn")
	}
}

func TestReadRowsEmpty(t *testing.T) {
	rows, err := ReadRows(strings.NewReader(""), sparebankDialect)
	if err != nil || rows != nil {
		t.Errorf("ReadRows(\"\") = %v, %v; expected no rows and no error", rows, err)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.csv")
	if err := os.WriteFile(path, []byte(sparebankCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	rows, err := ReadFile(path, sparebankDialect)
	if err != nil {
		t.Fatalf("ReadFile() unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("ReadFile() returned %d rows, expected 3", len(rows))
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.csv"), sparebankDialect); err == nil {
		t.Error("ReadFile() expected error for missing file")
	}
}

func TestDialectValidate(t *testing.T) {
	tests := []struct {
		name    string
		d       Dialect
		wantErr bool
	}{
		{"default", Dialect{}, false},
		{"semicolon utf-8-sig", sparebankDialect, false},
		{"latin1", Dialect{Encoding: "ISO-8859-1"}, false},
		{"multi-char delimiter", Dialect{Delimiter: ";;"}, true},
		{"unknown encoding", Dialect{Encoding: "ebcdic"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractPDFTextMissingFile(t *testing.T) {
	if _, err := ExtractPDFText(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("ExtractPDFText() expected error for missing file")
	}
}
