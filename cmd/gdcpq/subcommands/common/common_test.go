package common_test

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/gdcpq/cmd/gdcpq/subcommands/common"
	"github.com/askiada/gdcpq/internal/config"
)

func TestProjects(t *testing.T) {
	t.Parallel()

	projects := &common.Projects{}
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.Var(projects, "project", "project flag")
	require.NoError(t, fs.Parse([]string{"--project=TARGET-ALL-P2", "--project", "TCGA-LAML, CPTAC-3"}))

	assert.Equal(t, common.Projects{"TARGET-ALL-P2", "TCGA-LAML", "CPTAC-3"}, *projects)
	assert.Equal(t, "TARGET-ALL-P2,TCGA-LAML,CPTAC-3", projects.String())

	require.Error(t, projects.Set("a,,b"))
}

func TestFlags(t *testing.T) {
	t.Parallel()

	flags := common.Flags(&config.Config{LogLevel: "debug", LogFormat: "json"})
	assert.Equal(t, common.CommonFlags{LogLevel: "debug", LogFormat: "json"}, flags)
}
