// Package source reads statement documents into the raw inputs the
// pipeline consumes: rows for delimited files, text for PDF statements.
package source

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/pigeonworks-llc/bean-import/pkg/importer"
	"golang.org/x/text/encoding/charmap"
)

// ErrHeaderMismatch is returned when a document's header differs from the
// header a profile expects.
var ErrHeaderMismatch = errors.New("unexpected header")

// Dialect describes how a bank writes its CSV exports.
type Dialect struct {
	Delimiter string   `yaml:"delimiter"` // default ","
	Encoding  string   `yaml:"encoding"`  // utf-8, utf-8-sig, windows-1252, iso-8859-1
	Header    []string `yaml:"header"`    // expected header, optional
}

// Validate checks the delimiter and encoding.
func (d Dialect) Validate() error {
	if utf8.RuneCountInString(d.Delimiter) > 1 {
		return fmt.Errorf("dialect: delimiter %q must be a single character", d.Delimiter)
	}
	if _, err := decoder(d.Encoding, strings.NewReader("")); err != nil {
		return err
	}
	return nil
}

func (d Dialect) comma() rune {
	if d.Delimiter == "" {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(d.Delimiter)
	return r
}

func decoder(encoding string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8", "utf-8-sig":
		return r, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(r), nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15.NewDecoder().Reader(r), nil
	default:
		return nil, fmt.Errorf("dialect: unsupported encoding %q", encoding)
	}
}

// ReadRows parses a delimited document. The first record is the header and
// is line 1; each returned row carries the line its record starts on.
func ReadRows(r io.Reader, d Dialect) ([]importer.Row, error) {
	decoded, err := decoder(d.Encoding, r)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(decoded)
	if first, _, err := br.ReadRune(); err == nil && first != '\uFEFF' {
		if err := br.UnreadRune(); err != nil {
			return nil, err
		}
	}

	cr := csv.NewReader(br)
	cr.Comma = d.comma()
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	if len(d.Header) > 0 && !sameHeader(header, d.Header) {
		return nil, fmt.Errorf("%w: got %q, expected %q", ErrHeaderMismatch, header, d.Header)
	}

	var rows []importer.Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, importer.NewRow(line, header, record))
	}

	return rows, nil
}

// ReadFile opens path and parses it with ReadRows.
func ReadFile(path string, d Dialect) ([]importer.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := ReadRows(f, d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// sameHeader compares headers ignoring surrounding whitespace and the empty
// trailing column a terminating delimiter produces.
func sameHeader(got, expected []string) bool {
	got, expected = trimTrailingEmpty(got), trimTrailingEmpty(expected)
	if len(got) != len(expected) {
		return false
	}
	for i := range got {
		if got[i] != strings.TrimSpace(expected[i]) {
			return false
		}
	}
	return true
}

func trimTrailingEmpty(names []string) []string {
	for len(names) > 0 && strings.TrimSpace(names[len(names)-1]) == "" {
		names = names[:len(names)-1]
	}
	return names
}
