package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/parquet-go/parquet-go"
)

// metadata key holding column order. Parquet groups sort their fields by name.
const columnOrderKey = "backorder.columns"

var ErrUnsupportedColumn = errors.New("unsupported column type")

func WriteParquet(w io.Writer, t *Table) error {
	group := parquet.Group{}
	for _, c := range t.columns {
		switch c.Kind {
		case Numeric:
			group[c.Name] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		default:
			group[c.Name] = parquet.Optional(parquet.String())
		}
	}
	schema := parquet.NewSchema("table", group)

	order, err := json.Marshal(t.Names())
	if err != nil {
		return err
	}
	pw := parquet.NewWriter(w, schema, parquet.KeyValueMetadata(columnOrderKey, string(order)))

	fields := schema.Fields()
	rows := make([]parquet.Row, 0, t.NumRows())
	for r := 0; r < t.NumRows(); r++ {
		row := make(parquet.Row, len(fields))
		for leaf, f := range fields {
			c := t.columns[t.index[f.Name()]]
			var v parquet.Value
			switch {
			case c.IsMissing(r):
				v = parquet.NullValue().Level(0, 0, leaf)
			case c.Kind == Numeric:
				v = parquet.DoubleValue(c.Numbers[r]).Level(0, 1, leaf)
			default:
				v = parquet.ByteArrayValue([]byte(c.Labels[r])).Level(0, 1, leaf)
			}
			row[leaf] = v
		}
		rows = append(rows, row)
	}

	if _, err := pw.WriteRows(rows); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}

// ReadParquet reads a flat parquet file.
//
// Byte array columns are read as Categorical, and boolean, integer and floating point
// columns as Numeric.
func ReadParquet(r io.ReaderAt, size int64) (*Table, error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, err
	}

	fields := f.Schema().Fields()
	cols := make([]Column, len(fields))
	for i, fd := range fields {
		if !fd.Leaf() {
			return nil, fmt.Errorf("%w: nested column %s", ErrUnsupportedColumn, fd.Name())
		}
		switch fd.Type().Kind() {
		case parquet.ByteArray, parquet.FixedLenByteArray:
			cols[i] = CategoricalColumn(fd.Name())
		case parquet.Boolean, parquet.Int32, parquet.Int64, parquet.Float, parquet.Double:
			cols[i] = NumericColumn(fd.Name())
		default:
			return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedColumn, fd.Name(), fd.Type())
		}
	}

	buf := make([]parquet.Row, 256)
	for _, rg := range f.RowGroups() {
		if err := func() error {
			rows := rg.Rows()
			defer rows.Close()
			for {
				n, err := rows.ReadRows(buf)
				for _, row := range buf[:n] {
					for _, v := range row {
						appendValue(&cols[v.Column()], v)
					}
				}
				if errors.Is(err, io.EOF) {
					return nil
				} else if err != nil {
					return err
				}
			}
		}(); err != nil {
			return nil, err
		}
	}

	t, err := New(cols...)
	if err != nil {
		return nil, err
	}

	order, ok := f.Lookup(columnOrderKey)
	if !ok {
		return t, nil
	}
	names := []string{}
	if err := json.Unmarshal([]byte(order), &names); err != nil {
		return nil, fmt.Errorf("parquet: broken column order metadata: %w", err)
	}
	return t.Select(names...)
}

func appendValue(c *Column, v parquet.Value) {
	if c.Kind == Categorical {
		if v.IsNull() {
			c.Labels = append(c.Labels, "")
		} else {
			c.Labels = append(c.Labels, string(v.ByteArray()))
		}
		return
	}

	if v.IsNull() {
		c.Numbers = append(c.Numbers, math.NaN())
		return
	}
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			c.Numbers = append(c.Numbers, 1)
		} else {
			c.Numbers = append(c.Numbers, 0)
		}
	case parquet.Int32:
		c.Numbers = append(c.Numbers, float64(v.Int32()))
	case parquet.Int64:
		c.Numbers = append(c.Numbers, float64(v.Int64()))
	case parquet.Float:
		c.Numbers = append(c.Numbers, float64(v.Float()))
	default:
		c.Numbers = append(c.Numbers, v.Double())
	}
}
