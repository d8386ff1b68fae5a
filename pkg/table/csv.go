package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// cells read as missing values
var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "NaN": {}, "nan": {}, "null": {}, "NULL": {},
}

func isMissingToken(s string) bool {
	_, ok := missingTokens[strings.TrimSpace(s)]
	return ok
}

// ReadCSV reads a table from CSV with a header line.
//
// A column is Numeric when all of its non-missing cells are parsed as numbers.
// Otherwise it is Categorical.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv: header not found")
	} else if err != nil {
		return nil, err
	}

	cells := make([][]string, len(header))
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, err
		}
		for i := range header {
			cells[i] = append(cells[i], rec[i])
		}
	}

	cols := make([]Column, len(header))
	for i, name := range header {
		cols[i] = inferColumn(strings.TrimSpace(name), cells[i])
	}
	return New(cols...)
}

func inferColumn(name string, cells []string) Column {
	numbers := make([]float64, len(cells))
	numeric := true
	for i, s := range cells {
		if isMissingToken(s) {
			numbers[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			numeric = false
			break
		}
		numbers[i] = v
	}
	if numeric {
		return NumericColumn(name, numbers...)
	}

	labels := make([]string, len(cells))
	for i, s := range cells {
		if isMissingToken(s) {
			continue
		}
		labels[i] = s
	}
	return CategoricalColumn(name, labels...)
}

// WriteCSV writes t with a header line. Missing values are written as empty cells.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return err
	}
	rec := make([]string, t.NumColumns())
	for r := 0; r < t.NumRows(); r++ {
		for i, c := range t.columns {
			switch {
			case c.IsMissing(r):
				rec[i] = ""
			case c.Kind == Numeric:
				rec[i] = strconv.FormatFloat(c.Numbers[r], 'g', -1, 64)
			default:
				rec[i] = c.Labels[r]
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("csv: row %d: %w", r, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
