package verify

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youta-t/flarc"

	"github.com/askiada/gdcpq/cmd/gdcpq/subcommands/common"
	"github.com/askiada/gdcpq/internal/config"
	"github.com/askiada/gdcpq/internal/download"
	"github.com/askiada/gdcpq/internal/manifest"
	"github.com/askiada/gdcpq/internal/units"
)

type Flags struct {
	Workers   int `flag:"workers" alias:"w" help:"number of files checked concurrently"`
	ChunkSize int `flag:"chunk-size" metavar:"BYTES" help:"read buffer size"`
}

const (
	ARG_MANIFEST = "manifest"
	ARG_DIR      = "output_dir"
)

func New(cfg *config.Config) (flarc.Command, error) {
	return flarc.NewCommand(
		"Check downloaded files against a GDC manifest without downloading.",
		Flags{Workers: cfg.Workers, ChunkSize: cfg.ChunkSize},
		flarc.Args{
			{Name: ARG_MANIFEST, Required: true, Help: "GDC manifest file (tab separated)"},
			{Name: ARG_DIR, Required: true, Help: "directory holding the files"},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
List the files of the manifest that are missing or do not match their size
and md5 checksum. The command fails when at least one file is listed.

Example
-------

	{{ .Command }} gdc_manifest.txt ./data
`),
	)
}

func Task(ctx context.Context, _ *logrus.Entry, cl flarc.Commandline[Flags], _ []any) error {
	flags := cl.Flags()
	args := cl.Args()

	return Run(ctx, cl.Stdout(), args[ARG_MANIFEST][0], download.Options{
		Dir:       args[ARG_DIR][0],
		Workers:   flags.Workers,
		ChunkSize: flags.ChunkSize,
	})
}

func Run(ctx context.Context, stdout io.Writer, manifestPath string, opts download.Options) error {
	entries, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	downloader, err := download.New(nil, opts)
	if err != nil {
		return err
	}

	pending, err := downloader.Check(ctx, entries)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		fmt.Fprintf(stdout, "All %d files are downloaded and verified.\n", len(entries))

		return nil
	}

	for _, entry := range pending {
		fmt.Fprintf(stdout, "%s\t%s\n", entry.ID, entry.Filename)
	}
	fmt.Fprintf(stdout, "%d of %d files to download (%s)\n", len(pending), len(entries), units.FormatSize(manifest.TotalSize(pending)))

	return errors.Wrapf(download.ErrIncomplete, "%d files missing or corrupted", len(pending))
}
