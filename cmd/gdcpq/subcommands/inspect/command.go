package inspect

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/youta-t/flarc"

	"github.com/askiada/gdcpq/cmd/gdcpq/subcommands/common"
	"github.com/askiada/gdcpq/internal/parquetio"
	"github.com/askiada/gdcpq/internal/units"
)

type Flags struct {
	Columns bool `flag:"columns" alias:"c" help:"list every column"`
}

const ARG_FILE = "file"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Describe a Parquet file.",
		Flags{},
		flarc.Args{
			{Name: ARG_FILE, Required: true, Help: "Parquet file"},
		},
		common.NewTask(Task),
	)
}

func Task(_ context.Context, _ *logrus.Entry, cl flarc.Commandline[Flags], _ []any) error {
	return Run(cl.Stdout(), cl.Args()[ARG_FILE][0], cl.Flags().Columns)
}

func Run(stdout io.Writer, path string, listColumns bool) error {
	info, err := parquetio.Inspect(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "file: %s\n", path)
	fmt.Fprintf(stdout, "size: %s\n", units.FormatSize(info.Size))
	fmt.Fprintf(stdout, "rows: %d\n", info.Rows)
	fmt.Fprintf(stdout, "columns: %d\n", len(info.Columns))

	keys := make([]string, 0, len(info.Metadata))
	for key := range info.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(stdout, "%s: %s\n", key, info.Metadata[key])
	}

	if listColumns {
		for _, name := range info.Columns {
			fmt.Fprintf(stdout, "  %s\n", name)
		}
	}

	return nil
}
