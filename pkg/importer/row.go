// Package importer maps raw statement rows into canonical Beancount transactions.
package importer

import "strings"

// Row is one record of a delimited statement: the declared column names in
// header order and the raw text of each column. Columns are fixed when the
// row is created; a column that was not declared, or is missing from a short
// record, is absent rather than empty.
type Row struct {
	Line   int // 1-based line number in the source document
	names  []string
	values []string
	index  map[string]int
}

// NewRow creates a row. names and values are matched by position.
func NewRow(line int, names, values []string) Row {
	index := make(map[string]int, len(names))
	for i, name := range names {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	return Row{Line: line, names: names, values: values, index: index}
}

// Field returns the raw text of a column and whether the column is present.
func (r Row) Field(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	i, ok := r.index[name]
	if !ok || i >= len(r.values) {
		return "", false
	}
	return r.values[i], true
}

// Value returns the raw text of a column, or "" when it is absent.
func (r Row) Value(name string) string {
	v, _ := r.Field(name)
	return v
}

// Names returns the declared column names in order.
func (r Row) Names() []string {
	return r.names
}

// IsEmpty reports whether every present value is blank.
func (r Row) IsEmpty() bool {
	for _, v := range r.values {
		if strings.Trim(strings.TrimSpace(v), `"`) != "" {
			return false
		}
	}
	return true
}
