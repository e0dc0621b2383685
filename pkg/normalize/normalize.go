// Package normalize parses locale-formatted dates and amounts from bank
// statement fields into canonical values.
//
// Amounts are parsed into shopspring decimals so that "1.234,56" becomes
// exactly 1234.56 with no floating-point rounding.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrMalformedDate is returned when a date field does not match the expected layout.
	ErrMalformedDate = errors.New("malformed date")
	// ErrMalformedAmount is returned when an amount field cannot be parsed.
	ErrMalformedAmount = errors.New("malformed amount")
)

// Locale describes how a bank formats dates and numbers.
type Locale struct {
	DateLayout          string   // Go time layout, e.g. "2.1.2006"
	DecimalSeparator    string   // e.g. ","
	ThousandsSeparators []string // e.g. ".", " " and a no-break space
}

// Norwegian is the locale used by Norwegian banks: DD.MM.YYYY and 1.234,56.
// Day and month may be written without the leading zero.
var Norwegian = Locale{
	DateLayout:          "2.1.2006",
	DecimalSeparator:    ",",
	ThousandsSeparators: []string{".", " ", "\u00a0"},
}

// ParseDate parses a day-leading date using a Go time layout.
func ParseDate(text, layout string) (time.Time, error) {
	s := Unquote(text)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrMalformedDate)
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q does not match %q", ErrMalformedDate, s, layout)
	}
	return t, nil
}

// ParseAmount parses a localized decimal number.
// Thousands separators are removed and the decimal separator becomes ".".
// An empty field is zero.
func ParseAmount(text, decimalSeparator string, thousandsSeparators ...string) (decimal.Decimal, error) {
	s := Unquote(text)
	if s == "" {
		return decimal.Zero, nil
	}

	for _, sep := range thousandsSeparators {
		if sep != "" && sep != decimalSeparator {
			s = strings.ReplaceAll(s, sep, "")
		}
	}
	if decimalSeparator != "" && decimalSeparator != "." {
		s = strings.ReplaceAll(s, decimalSeparator, ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, text)
	}
	return d, nil
}

// ParseDate parses a date with the locale's layout.
func (l Locale) ParseDate(text string) (time.Time, error) {
	return ParseDate(text, l.DateLayout)
}

// ParseAmount parses an amount with the locale's separators.
func (l Locale) ParseAmount(text string) (decimal.Decimal, error) {
	return ParseAmount(text, l.DecimalSeparator, l.ThousandsSeparators...)
}

// FormatAmount renders d the way the locale prints it, grouping thousands
// with the first thousands separator. It is the inverse of ParseAmount.
func (l Locale) FormatAmount(d decimal.Decimal) string {
	s := d.String()

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	intPart, fracPart, hasFrac := strings.Cut(s, ".")

	group := ""
	if len(l.ThousandsSeparators) > 0 {
		group = l.ThousandsSeparators[0]
	}
	if group != "" {
		var b strings.Builder
		for i, r := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				b.WriteString(group)
			}
			b.WriteRune(r)
		}
		intPart = b.String()
	}

	if !hasFrac {
		return sign + intPart
	}
	decSep := l.DecimalSeparator
	if decSep == "" {
		decSep = "."
	}
	return sign + intPart + decSep + fracPart
}

// CreditOrDebit resolves the amount of a row with separate credit and debit
// columns. A non-zero credit wins. Otherwise the debit is used: verbatim when
// debitSigned is set, or as a negated magnitude when the column stores
// unsigned (or inconsistently signed) values. Both columns empty yields zero.
// ErrMalformedAmount is returned when neither column yields a usable value.
func (l Locale) CreditOrDebit(credit, debit string, debitSigned bool) (decimal.Decimal, error) {
	c, cErr := l.ParseAmount(credit)
	if cErr == nil && !c.IsZero() {
		return c, nil
	}

	d, dErr := l.ParseAmount(debit)
	switch {
	case dErr == nil && Unquote(debit) != "":
		if debitSigned {
			return d, nil
		}
		return d.Abs().Neg(), nil
	case cErr == nil && dErr == nil:
		return decimal.Zero, nil
	}
	return decimal.Zero, fmt.Errorf("%w: credit %q, debit %q", ErrMalformedAmount, credit, debit)
}

// Unquote trims whitespace and strips one pair of wrapping double quotes.
func Unquote(text string) string {
	s := strings.TrimSpace(text)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
