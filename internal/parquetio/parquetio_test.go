package parquetio_test

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/gdcpq/internal/parquetio"
)

func sampleTable() *parquetio.Table {
	return &parquetio.Table{
		KeyColumns:   []string{"sample_id", "label"},
		ValueColumns: []string{"ENSG2", "ENSG1"},
		Rows: []parquetio.Row{
			{Keys: []string{"s1", "Primary Tumor"}, Values: []float64{1.5, 2.5}},
			{Keys: []string{"s2", ""}, Values: []float64{math.NaN(), 0}},
		},
		Metadata: map[string]string{"gdcpq.value_column": "tpm_unstranded"},
	}
}

func TestWriteFileAndRead(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ALL.pq")
	require.NoError(t, parquetio.WriteFile(path, sampleTable(), parquetio.WriteOptions{}))

	info, err := parquetio.Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Rows)
	assert.ElementsMatch(t, []string{"sample_id", "label", "ENSG1", "ENSG2"}, info.Columns)
	assert.Positive(t, info.Size)
	assert.Equal(t, "tpm_unstranded", info.Metadata["gdcpq.value_column"])

	table, err := parquetio.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"sample_id", "label"}, table.KeyColumns)
	assert.Equal(t, []string{"ENSG1", "ENSG2"}, table.ValueColumns)
	assert.Equal(t, "tpm_unstranded", table.Metadata["gdcpq.value_column"])
	require.Len(t, table.Rows, 2)

	assert.Equal(t, []string{"s1", "Primary Tumor"}, table.Rows[0].Keys)
	assert.Equal(t, []float64{2.5, 1.5}, table.Rows[0].Values)
	assert.Equal(t, []string{"s2", ""}, table.Rows[1].Keys)
	assert.InDelta(t, 0, table.Rows[1].Values[0], 1e-12)
	assert.True(t, math.IsNaN(table.Rows[1].Values[1]))

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestWriteFileMode(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ALL.pq")
	require.NoError(t, parquetio.WriteFile(path, sampleTable(), parquetio.WriteOptions{}))

	stat, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), stat.Mode().Perm())
}

// GDC gene ids carry a version suffix after a dot.
func TestWriteVersionedGeneIDs(t *testing.T) {
	t.Parallel()

	table := &parquetio.Table{
		KeyColumns:   []string{"sample_id"},
		ValueColumns: []string{"ENSG00000000005.6", "ENSG00000000003.15", "ENSGR0000275287.5"},
		Rows: []parquetio.Row{
			{Keys: []string{"TARGET-10-PAKHZT-03A"}, Values: []float64{0.5, 31.25, math.NaN()}},
		},
	}

	path := filepath.Join(t.TempDir(), "B_ALL.pq")
	require.NoError(t, parquetio.WriteFile(path, table, parquetio.WriteOptions{}))

	info, err := parquetio.Inspect(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sample_id", "ENSG00000000005.6", "ENSG00000000003.15", "ENSGR0000275287.5"}, info.Columns)

	got, err := parquetio.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"sample_id"}, got.KeyColumns)
	assert.Equal(t, []string{"ENSG00000000003.15", "ENSG00000000005.6", "ENSGR0000275287.5"}, got.ValueColumns)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, []string{"TARGET-10-PAKHZT-03A"}, got.Rows[0].Keys)
	assert.InDelta(t, 31.25, got.Rows[0].Values[0], 1e-12)
	assert.InDelta(t, 0.5, got.Rows[0].Values[1], 1e-12)
	assert.True(t, math.IsNaN(got.Rows[0].Values[2]))
}

func TestWriteCompression(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"zstd", "snappy", "gzip", "none"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), name+".pq")
			require.NoError(t, parquetio.WriteFile(path, sampleTable(), parquetio.WriteOptions{Compression: name}))

			table, err := parquetio.ReadFile(path)
			require.NoError(t, err)
			assert.Len(t, table.Rows, 2)
		})
	}

	_, err := parquetio.ParseCompression("lz5")
	require.ErrorIs(t, err, parquetio.ErrUnknownCompression)
}

func TestWriteManyRows(t *testing.T) {
	t.Parallel()

	table := &parquetio.Table{KeyColumns: []string{"sample_id"}, ValueColumns: []string{"g"}}
	for i := range 1000 {
		table.Rows = append(table.Rows, parquetio.Row{Keys: []string{"s"}, Values: []float64{float64(i)}})
	}

	buf := &bytes.Buffer{}
	require.NoError(t, parquetio.Write(buf, table, parquetio.WriteOptions{Compression: "snappy"}))

	path := filepath.Join(t.TempDir(), "many.pq")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	read, err := parquetio.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, read.Rows, 1000)
	assert.InDelta(t, 999, read.Rows[999].Values[0], 1e-12)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tcs := map[string]*parquetio.Table{
		"no columns":       {},
		"empty name":       {KeyColumns: []string{""}},
		"duplicate column": {KeyColumns: []string{"a"}, ValueColumns: []string{"a"}},
		"short row": {
			KeyColumns:   []string{"a"},
			ValueColumns: []string{"b"},
			Rows:         []parquetio.Row{{Keys: []string{"x"}}},
		},
	}

	for name, table := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := parquetio.WriteFile(filepath.Join(t.TempDir(), "x.pq"), table, parquetio.WriteOptions{})
			require.ErrorIs(t, err, parquetio.ErrSchema)
		})
	}
}

func TestInspectMissing(t *testing.T) {
	t.Parallel()

	_, err := parquetio.Inspect(filepath.Join(t.TempDir(), "missing.pq"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
