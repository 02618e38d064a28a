package parquetio

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/pkg/errors"
)

const (
	// DefaultCompression is used when WriteOptions.Compression is empty.
	DefaultCompression = "zstd"

	keyColumnsMetadata = "gdcpq.key_columns"
	writeBatchSize     = 256

	outputMode os.FileMode = 0o644
)

var ErrUnknownCompression = errors.New("unknown compression")

type WriteOptions struct {
	// Compression is one of zstd, snappy, gzip or none.
	Compression string
}

// ParseCompression returns the codec named name.
func ParseCompression(name string) (compress.Codec, error) {
	switch strings.ToLower(name) {
	case "", DefaultCompression:
		return &parquet.Zstd, nil
	case "snappy":
		return &parquet.Snappy, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "none", "uncompressed":
		return &parquet.Uncompressed, nil
	default:
		return nil, errors.Wrap(ErrUnknownCompression, name)
	}
}

type layout struct {
	schema *parquet.Schema
	keys   []int
	values []int
}

func newLayout(table *Table) (*layout, error) {
	group := parquet.Group{}
	for _, name := range table.KeyColumns {
		group[name] = parquet.Optional(parquet.String())
	}
	for _, name := range table.ValueColumns {
		group[name] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
	}
	schema := parquet.NewSchema("sample", group)

	// parquet groups order their fields by name
	index := func(names []string) ([]int, error) {
		res := make([]int, len(names))
		for i, name := range names {
			leaf, ok := schema.Lookup(name)
			if !ok {
				return nil, errors.Wrapf(ErrSchema, "column %s not in schema", name)
			}
			res[i] = leaf.ColumnIndex
		}

		return res, nil
	}

	keys, err := index(table.KeyColumns)
	if err != nil {
		return nil, err
	}
	values, err := index(table.ValueColumns)
	if err != nil {
		return nil, err
	}

	return &layout{schema: schema, keys: keys, values: values}, nil
}

func (l *layout) row(r Row) parquet.Row {
	row := make(parquet.Row, len(l.keys)+len(l.values))
	for i, key := range r.Keys {
		col := l.keys[i]
		if key == "" {
			row[col] = parquet.NullValue().Level(0, 0, col)

			continue
		}
		row[col] = parquet.ByteArrayValue([]byte(key)).Level(0, 1, col)
	}
	for i, value := range r.Values {
		col := l.values[i]
		if math.IsNaN(value) {
			row[col] = parquet.NullValue().Level(0, 0, col)

			continue
		}
		row[col] = parquet.DoubleValue(value).Level(0, 1, col)
	}

	return row
}

// Write encodes table as Parquet into w.
func Write(w io.Writer, table *Table, opts WriteOptions) error {
	err := table.Validate()
	if err != nil {
		return err
	}

	codec, err := ParseCompression(opts.Compression)
	if err != nil {
		return err
	}

	l, err := newLayout(table)
	if err != nil {
		return err
	}

	writerOpts := []parquet.WriterOption{
		l.schema,
		parquet.Compression(codec),
		parquet.KeyValueMetadata(keyColumnsMetadata, strings.Join(table.KeyColumns, ",")),
	}
	for key, value := range table.Metadata {
		writerOpts = append(writerOpts, parquet.KeyValueMetadata(key, value))
	}

	writer := parquet.NewWriter(w, writerOpts...)

	batch := make([]parquet.Row, 0, writeBatchSize)
	for _, r := range table.Rows {
		batch = append(batch, l.row(r))
		if len(batch) == cap(batch) {
			_, err = writer.WriteRows(batch)
			if err != nil {
				return errors.Wrap(err, "unable to write rows")
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		_, err = writer.WriteRows(batch)
		if err != nil {
			return errors.Wrap(err, "unable to write rows")
		}
	}

	return errors.Wrap(writer.Close(), "unable to close parquet writer")
}

// WriteFile writes table to path. The file is written next to path under a
// temporary name and renamed once complete. The result is world-readable
// (0644) like a file created by os.Create.
func WriteFile(path string, table *Table, opts WriteOptions) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "unable to create temporary file for %s", path)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	err = Write(tmp, table, opts)
	if err != nil {
		return errors.Wrapf(err, "unable to write %s", path)
	}

	err = tmp.Chmod(outputMode)
	if err != nil {
		return errors.Wrapf(err, "unable to set mode of %s", tmp.Name())
	}

	err = tmp.Close()
	if err != nil {
		return errors.Wrapf(err, "unable to close %s", tmp.Name())
	}

	return errors.Wrapf(os.Rename(tmp.Name(), path), "unable to rename %s", tmp.Name())
}
