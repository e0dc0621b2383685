package beancount

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// The loader reads the subset of Beancount needed to recognize entries that
// are already recorded: transactions with their postings, balance
// assertions and include directives. Other directives are skipped.
var (
	txnHeaderRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s+(\*|!|txn)(?:\s+(.*))?$`)
	balanceRe   = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s+balance\s+(\S+)\s+(-?[\d,]*\.?\d+)\s*(?:~\s*([\d.]+)\s*)?([A-Z][A-Z0-9'._-]*)`)
	includeRe   = regexp.MustCompile(`^include\s+"([^"]+)"`)
	metaRe      = regexp.MustCompile(`^\s+([a-z_][\w-]*):\s*(.*)$`)
	postingRe   = regexp.MustCompile(`^\s+(?:[!*]\s+)?((?:Assets|Liabilities|Equity|Income|Expenses)(?::\S+)+)(?:\s+(.*))?$`)
	unitsRe     = regexp.MustCompile(`^(-?[\d,]*\.?\d+)\s+([A-Z][A-Z0-9'._-]*)`)
	stringRe    = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

// Parse reads directives from r. name is recorded as the source document.
// Posting amounts that are not plain numbers (arithmetic, costs only) leave
// the posting without units.
func Parse(r io.Reader, name string) ([]Directive, error) {
	entries, _, err := parse(r, name)
	return entries, err
}

// ParseFile reads a ledger file and every file it includes.
func ParseFile(path string) ([]Directive, error) {
	return parseFile(path, make(map[string]bool))
}

func parseFile(path string, visited map[string]bool) ([]Directive, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if visited[abs] {
		return nil, nil
	}
	visited[abs] = true

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	entries, includes, err := parse(f, path)
	if err != nil {
		return nil, err
	}

	for _, inc := range includes {
		pattern := inc
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(filepath.Dir(path), pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("%s: bad include %q: %w", path, inc, err)
		}
		for _, m := range matches {
			sub, err := parseFile(m, visited)
			if err != nil {
				return nil, err
			}
			entries = append(entries, sub...)
		}
	}

	return entries, nil
}

func parse(r io.Reader, name string) ([]Directive, []string, error) {
	var (
		entries  []Directive
		includes []string
		current  *Transaction
		lineNo   int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), " \t\r")

		if line == "" || strings.HasPrefix(strings.TrimSpace(line), ";") {
			if line == "" {
				current = nil
			}
			continue
		}

		indented := line[0] == ' ' || line[0] == '\t'
		if indented {
			if current != nil {
				parseTransactionLine(current, line)
			}
			continue
		}
		current = nil

		if m := txnHeaderRe.FindStringSubmatch(line); m != nil {
			date, err := time.Parse(DateLayout, m[1])
			if err != nil {
				return nil, nil, fmt.Errorf("%s:%d: invalid date %q", name, lineNo, m[1])
			}
			flag := m[2]
			if flag == "txn" {
				flag = "*"
			}
			current = &Transaction{Date: date, Flag: flag, Source: SourceLocation{Document: name, Line: lineNo}}
			strs := stringRe.FindAllStringSubmatch(m[3], 2)
			switch len(strs) {
			case 1:
				current.Narration = unescape(strs[0][1])
			case 2:
				current.Payee = unescape(strs[0][1])
				current.Narration = unescape(strs[1][1])
			}
			entries = append(entries, current)
			continue
		}

		if m := balanceRe.FindStringSubmatch(line); m != nil {
			bal, err := parseBalance(m, name, lineNo)
			if err != nil {
				return nil, nil, err
			}
			entries = append(entries, bal)
			continue
		}

		if m := includeRe.FindStringSubmatch(line); m != nil {
			includes = append(includes, m[1])
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	return entries, includes, nil
}

func parseTransactionLine(txn *Transaction, line string) {
	if m := metaRe.FindStringSubmatch(line); m != nil {
		value := m[2]
		if s := stringRe.FindStringSubmatch(value); s != nil {
			value = unescape(s[1])
		}
		txn.Meta()[m[1]] = value
		return
	}

	m := postingRe.FindStringSubmatch(line)
	if m == nil {
		return
	}

	posting := Posting{Account: m[1]}
	if u := unitsRe.FindStringSubmatch(m[2]); u != nil {
		if n, err := decimal.NewFromString(strings.ReplaceAll(u[1], ",", "")); err == nil {
			posting.Units = NewAmount(n, u[2])
			if txn.Currency == "" {
				txn.Currency = u[2]
			}
		}
	}
	txn.Postings = append(txn.Postings, posting)
}

func parseBalance(m []string, name string, lineNo int) (*Balance, error) {
	date, err := time.Parse(DateLayout, m[1])
	if err != nil {
		return nil, fmt.Errorf("%s:%d: invalid date %q", name, lineNo, m[1])
	}
	number, err := decimal.NewFromString(strings.ReplaceAll(m[3], ",", ""))
	if err != nil {
		return nil, fmt.Errorf("%s:%d: invalid balance amount %q", name, lineNo, m[3])
	}

	bal := &Balance{
		Date:    date,
		Account: m[2],
		Amount:  Amount{Number: number, Currency: m[5]},
		Source:  SourceLocation{Document: name, Line: lineNo},
	}
	if m[4] != "" {
		tol, err := decimal.NewFromString(m[4])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid tolerance %q", name, lineNo, m[4])
		}
		bal.Tolerance = &tol
	}
	return bal, nil
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	return strings.ReplaceAll(s, `\\`, `\`)
}
