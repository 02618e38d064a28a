// Package parquetio writes sample tables as Parquet files and reads them back.
package parquetio

import (
	"github.com/pkg/errors"
)

var ErrSchema = errors.New("invalid table schema")

// Table is a wide table: string key columns followed by float64 value
// columns. NaN values and empty keys are written as nulls.
type Table struct {
	KeyColumns   []string
	ValueColumns []string
	Rows         []Row
	// Metadata is stored in the file footer.
	Metadata map[string]string
}

type Row struct {
	Keys   []string
	Values []float64
}

// Validate checks that column names are unique and rows match the columns.
func (t *Table) Validate() error {
	seen := make(map[string]struct{}, len(t.KeyColumns)+len(t.ValueColumns))
	for _, names := range [][]string{t.KeyColumns, t.ValueColumns} {
		for _, name := range names {
			if name == "" {
				return errors.Wrap(ErrSchema, "empty column name")
			}
			if _, ok := seen[name]; ok {
				return errors.Wrapf(ErrSchema, "duplicate column %s", name)
			}
			seen[name] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return errors.Wrap(ErrSchema, "no columns")
	}

	for i, row := range t.Rows {
		if len(row.Keys) != len(t.KeyColumns) || len(row.Values) != len(t.ValueColumns) {
			return errors.Wrapf(ErrSchema, "row %d has %d keys and %d values, expected %d and %d",
				i, len(row.Keys), len(row.Values), len(t.KeyColumns), len(t.ValueColumns))
		}
	}

	return nil
}
