// Package table provides an in-memory column-oriented table
// with numeric and categorical columns, and its file formats.
package table

import (
	"errors"
	"fmt"
	"math"
)

type Kind int

const (
	// float64 values. NaN is a missing value.
	Numeric Kind = iota

	// string labels. Empty string is a missing value.
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var (
	ErrColumnLength    = errors.New("column length mismatch")
	ErrDuplicateColumn = errors.New("duplicated column name")
)

type Column struct {
	Name string
	Kind Kind

	// values of a Numeric column
	Numbers []float64

	// values of a Categorical column
	Labels []string
}

func NumericColumn(name string, values ...float64) Column {
	return Column{Name: name, Kind: Numeric, Numbers: values}
}

func CategoricalColumn(name string, values ...string) Column {
	return Column{Name: name, Kind: Categorical, Labels: values}
}

func (c Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Numbers)
	}
	return len(c.Labels)
}

func (c Column) IsMissing(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Numbers[i])
	}
	return c.Labels[i] == ""
}

// MissingFraction is the fraction of missing values in the column.
//
// For empty columns, it is 0.
func (c Column) MissingFraction() float64 {
	n := c.Len()
	if n == 0 {
		return 0
	}
	missing := 0
	for i := 0; i < n; i++ {
		if c.IsMissing(i) {
			missing += 1
		}
	}
	return float64(missing) / float64(n)
}

// Value returns i-th value as float64 or string. Missing value is nil.
func (c Column) Value(i int) any {
	if c.IsMissing(i) {
		return nil
	}
	if c.Kind == Numeric {
		return c.Numbers[i]
	}
	return c.Labels[i]
}

func (c Column) take(rows []int) Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case Numeric:
		out.Numbers = make([]float64, len(rows))
		for i, r := range rows {
			out.Numbers[i] = c.Numbers[r]
		}
	default:
		out.Labels = make([]string, len(rows))
		for i, r := range rows {
			out.Labels[i] = c.Labels[r]
		}
	}
	return out
}

// Table is an immutable sequence of equal-length columns with unique names.
type Table struct {
	columns []Column
	index   map[string]int
	rows    int
}

func New(columns ...Column) (*Table, error) {
	rows := 0
	if 0 < len(columns) {
		rows = columns[0].Len()
	}
	return newWithRows(rows, columns)
}

func newWithRows(rows int, columns []Column) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, ok := index[c.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name)
		}
		if c.Len() != rows {
			return nil, fmt.Errorf(
				"%w: column %s has %d rows, expected %d", ErrColumnLength, c.Name, c.Len(), rows,
			)
		}
		index[c.Name] = i
	}
	return &Table{columns: columns, index: index, rows: rows}, nil
}

func (t *Table) NumRows() int {
	return t.rows
}

func (t *Table) NumColumns() int {
	return len(t.columns)
}

// Names of columns in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) Columns() []Column {
	return append([]Column{}, t.columns...)
}

func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Drop returns a table without named columns. Names not in the table are ignored.
//
// The row count is kept even when every column is dropped.
func (t *Table) Drop(names ...string) *Table {
	drop := map[string]struct{}{}
	for _, n := range names {
		drop[n] = struct{}{}
	}
	kept := make([]Column, 0, len(t.columns))
	for _, c := range t.columns {
		if _, ok := drop[c.Name]; ok {
			continue
		}
		kept = append(kept, c)
	}
	out, _ := newWithRows(t.rows, kept)
	return out
}

// Select returns a table having named columns in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return nil, fmt.Errorf("column not found: %s", n)
		}
		cols = append(cols, c)
	}
	return newWithRows(t.rows, cols)
}

// Take returns a table made of rows at given indexes, in that order.
//
// Indexes may repeat.
func (t *Table) Take(rows []int) *Table {
	for _, r := range rows {
		if r < 0 || t.rows <= r {
			panic(fmt.Sprintf("row index out of range: %d (rows: %d)", r, t.rows))
		}
	}
	cols := make([]Column, len(t.columns))
	for i, c := range t.columns {
		cols[i] = c.take(rows)
	}
	out, _ := newWithRows(len(rows), cols)
	return out
}

// Head returns first n rows. If n exceeds the row count, whole rows are returned.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if t.rows < n {
		n = t.rows
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.Take(idx)
}

// With returns a table with column c. A column with the same name is replaced in place.
func (t *Table) With(c Column) (*Table, error) {
	cols := append([]Column{}, t.columns...)
	if i, ok := t.index[c.Name]; ok {
		cols[i] = c
	} else {
		cols = append(cols, c)
	}
	rows := t.rows
	if len(t.columns) == 0 {
		rows = c.Len()
	}
	return newWithRows(rows, cols)
}

// Record returns i-th row as a map from column name to value. Missing values are nil.
func (t *Table) Record(i int) map[string]any {
	rec := make(map[string]any, len(t.columns))
	for _, c := range t.columns {
		rec[c.Name] = c.Value(i)
	}
	return rec
}
