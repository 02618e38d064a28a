package parquetio

import (
	"io"
	"math"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

const readBatchSize = 64

// Info describes a Parquet file.
type Info struct {
	Rows     int64
	Columns  []string
	Size     int64
	Metadata map[string]string
}

func open(path string) (*os.File, *parquet.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "unable to open %s", path)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()

		return nil, nil, errors.Wrapf(err, "unable to stat %s", path)
	}

	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		file.Close()

		return nil, nil, errors.Wrapf(err, "unable to read parquet footer of %s", path)
	}

	return file, pf, nil
}

// columnNames joins leaf paths. The schema is flat, so every path has a
// single segment and a dot inside a versioned gene id stays in the name.
func columnNames(schema *parquet.Schema) []string {
	paths := schema.Columns()
	names := make([]string, len(paths))
	for i, path := range paths {
		names[i] = strings.Join(path, ".")
	}

	return names
}

// Inspect reads the footer of the Parquet file at path.
func Inspect(path string) (*Info, error) {
	file, pf, err := open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info := &Info{
		Rows:     pf.NumRows(),
		Columns:  columnNames(pf.Schema()),
		Size:     pf.Size(),
		Metadata: make(map[string]string),
	}
	for _, kv := range pf.Metadata().KeyValueMetadata {
		info.Metadata[kv.Key] = kv.Value
	}

	return info, nil
}

// ReadFile reads back a table written by WriteFile. Value columns are
// returned in file order, which is lexical.
func ReadFile(path string) (*Table, error) {
	file, pf, err := open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	keyColumns := []string{}
	if raw, ok := pf.Lookup(keyColumnsMetadata); ok && raw != "" {
		keyColumns = strings.Split(raw, ",")
	}
	isKey := make(map[string]int, len(keyColumns))
	for i, name := range keyColumns {
		isKey[name] = i
	}

	table := &Table{KeyColumns: keyColumns, Metadata: make(map[string]string)}
	for _, kv := range pf.Metadata().KeyValueMetadata {
		if kv.Key != keyColumnsMetadata {
			table.Metadata[kv.Key] = kv.Value
		}
	}

	// column index -> position in Keys (>= 0) or Values (encoded as -1-pos)
	names := columnNames(pf.Schema())
	positions := make([]int, len(names))
	for col, name := range names {
		if pos, ok := isKey[name]; ok {
			positions[col] = pos

			continue
		}
		positions[col] = -1 - len(table.ValueColumns)
		table.ValueColumns = append(table.ValueColumns, name)
	}

	reader := parquet.NewReader(file)
	defer reader.Close()

	buf := make([]parquet.Row, readBatchSize)
	for {
		n, err := reader.ReadRows(buf)
		for _, values := range buf[:n] {
			table.Rows = append(table.Rows, decodeRow(values, positions, len(keyColumns), len(table.ValueColumns)))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read rows of %s", path)
		}
	}

	return table, nil
}

func decodeRow(values parquet.Row, positions []int, nKeys, nValues int) Row {
	row := Row{Keys: make([]string, nKeys), Values: make([]float64, nValues)}
	for i := range row.Values {
		row.Values[i] = math.NaN()
	}

	for _, v := range values {
		pos := positions[v.Column()]
		switch {
		case pos >= 0:
			if !v.IsNull() {
				row.Keys[pos] = string(v.ByteArray())
			}
		case !v.IsNull():
			row.Values[-1-pos] = v.Double()
		}
	}

	return row
}
