package combine

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youta-t/flarc"
	"gopkg.in/yaml.v3"

	"github.com/askiada/gdcpq/cmd/gdcpq/subcommands/common"
	"github.com/askiada/gdcpq/internal/config"
	"github.com/askiada/gdcpq/internal/dataset"
	"github.com/askiada/gdcpq/internal/parquetio"
	"github.com/askiada/gdcpq/internal/units"
)

type Flags struct {
	ValueColumn string           `flag:"value-column" metavar:"COLUMN" help:"expression column to extract"`
	LabelField  string           `flag:"label-field" metavar:"sample_type|tissue_type|project_id|case_id" help:"metadata field copied into the label column"`
	Project     *common.Projects `flag:"project" alias:"p" metavar:"PROJECT_ID" help:"keep only the samples of this project. Repeatable."`
	Workers     int              `flag:"workers" alias:"w" help:"number of files read concurrently"`
	Compression string           `flag:"compression" metavar:"zstd|snappy|gzip|none" help:"parquet compression codec"`
	SkipMissing bool             `flag:"skip-missing" help:"ignore samples whose expression file is not downloaded"`
	Graph       string           `flag:"graph" metavar:"FILE" help:"write the pipeline graph in DOT format to FILE"`
	Report      string           `flag:"report" metavar:"FILE" help:"write a YAML report to FILE"`
}

const (
	ARG_METADATA = "metadata"
	ARG_DIR      = "download_dir"
	ARG_OUTPUT   = "output"
)

func New(cfg *config.Config) (flarc.Command, error) {
	return flarc.NewCommand(
		"Combine downloaded expression files into one Parquet table.",
		Flags{
			ValueColumn: cfg.ValueColumn,
			LabelField:  cfg.LabelField,
			Project:     &common.Projects{},
			Workers:     cfg.Workers,
			Compression: cfg.Compression,
		},
		flarc.Args{
			{Name: ARG_METADATA, Required: true, Help: "GDC metadata JSON of the cart"},
			{Name: ARG_DIR, Required: true, Help: "directory holding the expression files"},
			{Name: ARG_OUTPUT, Required: true, Help: "Parquet file to write"},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Build a sample x gene table from the downloaded STAR gene counts files and
write it as Parquet. Each row is a sample, labelled from the metadata.

Example
-------

	{{ .Command }} metadata.cart.json ./data ALL.pq
	{{ .Command }} --project TARGET-ALL-P2 metadata.cart.json ./data B_ALL.pq
`),
	)
}

func Task(ctx context.Context, _ *logrus.Entry, cl flarc.Commandline[Flags], _ []any) error {
	flags := cl.Flags()
	args := cl.Args()

	_, err := parquetio.ParseCompression(flags.Compression)
	if err != nil {
		return errors.Wrap(flarc.ErrUsage, err.Error())
	}

	var projects []string
	if flags.Project != nil {
		projects = *flags.Project
	}

	return Run(ctx, cl.Stdout(), Params{
		Metadata: args[ARG_METADATA][0],
		Output:   args[ARG_OUTPUT][0],
		Report:   flags.Report,
		Options: dataset.Options{
			Dir:         args[ARG_DIR][0],
			ValueColumn: flags.ValueColumn,
			LabelField:  flags.LabelField,
			Projects:    projects,
			Workers:     flags.Workers,
			SkipMissing: flags.SkipMissing,
			GraphFile:   flags.Graph,
		},
		WriteOptions: parquetio.WriteOptions{Compression: flags.Compression},
	})
}

type Params struct {
	Metadata     string
	Output       string
	Report       string
	Options      dataset.Options
	WriteOptions parquetio.WriteOptions
}

func Run(ctx context.Context, stdout io.Writer, params Params) error {
	report, err := dataset.Combine(ctx, params.Metadata, params.Output, params.Options, params.WriteOptions)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Wrote %s: %d samples x %d genes in %s\n",
		params.Output, report.Samples, report.Genes, units.FormatDuration(report.Duration))
	if report.Filtered > 0 {
		fmt.Fprintf(stdout, "Filtered out by project: %d\n", report.Filtered)
	}
	if len(report.Missing) > 0 {
		fmt.Fprintf(stdout, "Skipped %d samples without expression file\n", len(report.Missing))
	}

	if params.Report == "" {
		return nil
	}

	out, err := yaml.Marshal(report)
	if err != nil {
		return errors.Wrap(err, "unable to encode report")
	}

	return errors.Wrapf(os.WriteFile(params.Report, out, 0o644), "unable to write report %s", params.Report)
}
