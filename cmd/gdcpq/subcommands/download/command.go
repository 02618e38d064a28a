package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youta-t/flarc"

	"github.com/askiada/gdcpq/cmd/gdcpq/subcommands/common"
	"github.com/askiada/gdcpq/internal/config"
	dl "github.com/askiada/gdcpq/internal/download"
	"github.com/askiada/gdcpq/internal/gdc"
	"github.com/askiada/gdcpq/internal/manifest"
	"github.com/askiada/gdcpq/internal/units"
)

type Flags struct {
	Workers         int           `flag:"workers" alias:"w" help:"number of concurrent downloads"`
	ChunkSize       int           `flag:"chunk-size" metavar:"BYTES" help:"read buffer size"`
	Retries         int           `flag:"retries" help:"retries of a failed download before giving up on the file"`
	Timeout         time.Duration `flag:"timeout" help:"connect, response and idle read timeout of a download, 0 for none"`
	APIURL          string        `flag:"api-url" metavar:"URL" help:"GDC API base URL"`
	Report          string        `flag:"report" metavar:"FILE" help:"write a YAML summary to FILE"`
	Graph           string        `flag:"graph" metavar:"FILE" help:"write the pipeline graph in DOT format to FILE"`
	NoProgress      bool          `flag:"no-progress" help:"do not display the progress bar"`
	SkipStatusCheck bool          `flag:"skip-status-check" help:"do not query the API status first"`
}

const (
	ARG_MANIFEST = "manifest"
	ARG_DIR      = "output_dir"
)

func New(cfg *config.Config) (flarc.Command, error) {
	return flarc.NewCommand(
		"Download the files of a GDC manifest.",
		Flags{
			Workers:   cfg.Workers,
			ChunkSize: cfg.ChunkSize,
			Retries:   cfg.Retries,
			Timeout:   cfg.Timeout,
			APIURL:    cfg.APIURL,
		},
		flarc.Args{
			{Name: ARG_MANIFEST, Required: true, Help: "GDC manifest file (tab separated)"},
			{Name: ARG_DIR, Required: true, Help: "directory receiving the files"},
		},
		common.NewTask(Task(cfg.RetryBackoff)),
		flarc.WithDescription(`
Download the files listed in a GDC manifest, in parallel.

Every file is checked against the manifest size and md5 checksum. Files that
already exist and verify are skipped. Files failing verification are deleted,
so running the same command again retries exactly the failed downloads.

Example
-------

	{{ .Command }} --workers 8 gdc_manifest.txt ./data
`),
	)
}

func Task(backoff time.Duration) common.Task[Flags] {
	return func(ctx context.Context, log *logrus.Entry, cl flarc.Commandline[Flags], _ []any) error {
		flags := cl.Flags()
		args := cl.Args()
		if flags.Workers < 1 {
			return errors.Wrap(flarc.ErrUsage, "--workers must be at least 1")
		}

		var progress io.Writer
		if !flags.NoProgress {
			progress = cl.Stderr()
		}

		return Run(ctx, log, cl.Stdout(), Params{
			Manifest:        args[ARG_MANIFEST][0],
			Client:          gdc.NewClient(gdc.WithBaseURL(flags.APIURL), gdc.WithTimeout(flags.Timeout), gdc.WithChunkSize(flags.ChunkSize)),
			SkipStatusCheck: flags.SkipStatusCheck,
			Report:          flags.Report,
			Options: dl.Options{
				Dir:          args[ARG_DIR][0],
				Workers:      flags.Workers,
				ChunkSize:    flags.ChunkSize,
				Retries:      flags.Retries,
				RetryBackoff: backoff,
				Progress:     progress,
				GraphFile:    flags.Graph,
			},
		})
	}
}

type Params struct {
	Manifest        string
	Client          *gdc.Client
	SkipStatusCheck bool
	Report          string
	Options         dl.Options
}

// Run downloads the manifest and prints the summary to stdout. It fails with
// download.ErrIncomplete when a file could not be downloaded.
func Run(ctx context.Context, log *logrus.Entry, stdout io.Writer, params Params) error {
	if !params.SkipStatusCheck {
		status, err := params.Client.Status(ctx)
		if err != nil {
			log.WithError(err).Warn("unable to reach the GDC API, trying anyway")
		} else {
			log.WithField("release", status.DataRelease).Info("GDC API is up")
		}
	}

	entries, err := manifest.Load(params.Manifest)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Loaded manifest with %d files (%s)\n", len(entries), units.FormatSize(manifest.TotalSize(entries)))
	fmt.Fprintf(stdout, "Download directory: %s\n", params.Options.Dir)
	fmt.Fprintf(stdout, "Max workers: %d\n", params.Options.Workers)

	downloader, err := dl.New(params.Client, params.Options)
	if err != nil {
		return err
	}

	summary, runErr := downloader.Run(ctx, entries)
	if summary == nil {
		return runErr
	}

	if summary.Skipped == summary.Total && runErr == nil {
		fmt.Fprintln(stdout, "All files are already downloaded and verified!")
	}
	err = summary.WriteText(stdout)
	if err != nil {
		return err
	}

	if params.Report != "" {
		err = writeReport(params.Report, summary)
		if err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}

	return summary.Err()
}

func writeReport(path string, summary *dl.Summary) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create report %s", path)
	}
	defer file.Close()

	err = summary.WriteYAML(file)
	if err != nil {
		return err
	}

	return file.Close()
}
