package table

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported table format")

type Format string

const (
	CSV     Format = "csv"
	Parquet Format = "parquet"
)

// FormatOf determines a table format from the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV, nil
	case ".parquet", ".pq":
		return Parquet, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Read reads a table from a file. The format is determined from its extension.
func Read(path string) (*Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch format {
	case CSV:
		return ReadCSV(f)
	default:
		st, err := f.Stat()
		if err != nil {
			return nil, err
		}
		return ReadParquet(f, st.Size())
	}
}

// Write writes a table into a new file. The format is determined from its extension.
//
// Parent directories are created when needed. Existing file is not overwritten.
func Write(t *Table, path string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0o755)); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, os.FileMode(0o644))
	if err != nil {
		return err
	}
	defer f.Close()

	switch format {
	case CSV:
		err = WriteCSV(f, t)
	default:
		err = WriteParquet(f, t)
	}
	if err != nil {
		return err
	}
	return f.Close()
}
