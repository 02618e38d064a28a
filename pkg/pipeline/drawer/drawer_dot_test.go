package drawer_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/gdcpq/pkg/pipeline/drawer"
	"github.com/askiada/gdcpq/pkg/pipeline/measure"
)

func TestDOTDrawer(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	d := drawer.NewDOTWriterDrawer(buf)

	require.NoError(t, d.AddStep("manifest"))
	require.NoError(t, d.AddStep("verify"))
	require.NoError(t, d.AddStep("verify"))
	require.NoError(t, d.AddLink("manifest", "verify"))
	require.NoError(t, d.AddLink("manifest", "verify"))
	require.Error(t, d.AddLink("manifest", "unknown"))

	m := measure.NewDefaultMeasure()
	m.AddMetric("manifest", 1)
	mt := m.AddMetric("verify", 1)
	mt.AddDuration(3 * time.Millisecond)
	mt.AddTransportDuration("manifest", time.Millisecond)

	require.NoError(t, d.AddMeasure(m))
	require.NoError(t, d.SetTotalTime("verify", time.Now()))
	require.NoError(t, d.Draw())

	out := buf.String()
	assert.Contains(t, out, "strict digraph")
	assert.Contains(t, out, `"manifest" -> "verify"`)
	assert.Contains(t, out, `label="1ms"`)
}

func TestDOTDrawerEmptyMeasure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pipeline.gv")
	d := drawer.NewDOTDrawer(path)
	require.NoError(t, d.AddStep("root"))
	require.NoError(t, d.AddMeasure(measure.NewDefaultMeasure()))
	require.NoError(t, d.Draw())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"root"`)
}
