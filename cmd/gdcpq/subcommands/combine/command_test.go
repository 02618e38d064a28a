package combine_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/gdcpq/cmd/gdcpq/subcommands/combine"
	"github.com/askiada/gdcpq/internal/dataset"
	"github.com/askiada/gdcpq/internal/parquetio"
)

func TestRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.tsv"), []byte("gene_id\ttpm_unstranded\nENSG1\t1.0\nENSG2\t2.0\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(`[
		{"file_name": "a.tsv", "file_id": "f1", "associated_entities": [{"entity_submitter_id": "S1"}],
		 "cases": [{"project": {"project_id": "TARGET-ALL-P2"}, "samples": [{"sample_type": "Primary Tumor"}]}]},
		{"file_name": "b.tsv", "file_id": "f2", "associated_entities": [{"entity_submitter_id": "S2"}]}
	]`), 0o600))

	output := filepath.Join(dir, "ALL.pq")
	report := filepath.Join(dir, "report.yaml")
	stdout := &bytes.Buffer{}

	err := combine.Run(t.Context(), stdout, combine.Params{
		Metadata:     filepath.Join(dir, "metadata.json"),
		Output:       output,
		Report:       report,
		Options:      dataset.Options{Dir: dir, SkipMissing: true},
		WriteOptions: parquetio.WriteOptions{Compression: "snappy"},
	})
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "1 samples x 2 genes")
	assert.Contains(t, stdout.String(), "Skipped 1 samples without expression file")

	yaml, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(yaml), "- b.tsv")

	info, err := parquetio.Inspect(output)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Rows)
}
