package beancount

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"
)

// amountColumn is the column amounts are aligned to.
const amountColumn = 60

// Printer formats directives as Beancount text.
type Printer struct {
	// DropDuplicates omits entries marked as duplicates. Otherwise they are
	// printed commented out.
	DropDuplicates bool
}

// FormatTransaction formats a transaction as a string.
func (p *Printer) FormatTransaction(txn *Transaction) string {
	var sb strings.Builder

	flag := txn.Flag
	if flag == "" {
		flag = "*"
	}
	sb.WriteString(txn.Date.Format(DateLayout))
	sb.WriteString(" ")
	sb.WriteString(flag)
	if txn.Payee != "" {
		sb.WriteString(" ")
		sb.WriteString(quote(txn.Payee))
	}
	sb.WriteString(" ")
	sb.WriteString(quote(txn.Narration))
	sb.WriteString("\n")

	writeMetadata(&sb, txn.Metadata)

	for _, posting := range txn.Postings {
		sb.WriteString("  ")
		sb.WriteString(posting.Account)
		if posting.Units != nil {
			// Right-align amount (typical Beancount style)
			spaces := max(1, amountColumn-utf8.RuneCountInString(posting.Account))
			sb.WriteString(strings.Repeat(" ", spaces))
			sb.WriteString(posting.Units.String())
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatBalance formats a balance assertion as a string.
func (p *Printer) FormatBalance(bal *Balance) string {
	var sb strings.Builder

	head := bal.Date.Format(DateLayout) + " balance " + bal.Account
	sb.WriteString(head)
	sb.WriteString(strings.Repeat(" ", max(1, amountColumn+2-utf8.RuneCountInString(head))))
	sb.WriteString(FormatNumber(bal.Amount.Number))
	if bal.Tolerance != nil {
		sb.WriteString(" ~ ")
		sb.WriteString(FormatNumber(*bal.Tolerance))
	}
	sb.WriteString(" ")
	sb.WriteString(bal.Amount.Currency)
	sb.WriteString("\n")

	writeMetadata(&sb, bal.Metadata)

	return sb.String()
}

// Format formats any directive. Duplicates are commented out, or omitted
// entirely when DropDuplicates is set.
func (p *Printer) Format(d Directive) string {
	if IsDuplicate(d) && p.DropDuplicates {
		return ""
	}

	var text string
	switch e := d.(type) {
	case *Transaction:
		text = p.FormatTransaction(e)
	case *Balance:
		text = p.FormatBalance(e)
	default:
		return ""
	}

	if IsDuplicate(d) {
		return commentOut(text)
	}
	return text
}

// Write prints entries separated by blank lines.
func (p *Printer) Write(w io.Writer, entries []Directive) error {
	first := true
	for _, e := range entries {
		text := p.Format(e)
		if text == "" {
			continue
		}
		if !first {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		first = false
		if _, err := io.WriteString(w, text); err != nil {
			return fmt.Errorf("failed to write entry %s: %w", e.Location(), err)
		}
	}
	return nil
}

func writeMetadata(sb *strings.Builder, meta Metadata) {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sb.WriteString("  ")
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(quote(meta[k]))
		sb.WriteString("\n")
	}
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func commentOut(text string) string {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "; " + l
	}
	return strings.Join(lines, "\n") + "\n"
}
