package status

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/youta-t/flarc"

	"github.com/askiada/gdcpq/cmd/gdcpq/subcommands/common"
	"github.com/askiada/gdcpq/internal/config"
	"github.com/askiada/gdcpq/internal/gdc"
)

type Flags struct {
	APIURL string `flag:"api-url" metavar:"URL" help:"GDC API base URL"`
}

func New(cfg *config.Config) (flarc.Command, error) {
	return flarc.NewCommand(
		"Check that the GDC API is reachable.",
		Flags{APIURL: cfg.APIURL},
		flarc.Args{},
		common.NewTask(Task),
	)
}

func Task(ctx context.Context, _ *logrus.Entry, cl flarc.Commandline[Flags], _ []any) error {
	return Run(ctx, cl.Stdout(), gdc.NewClient(gdc.WithBaseURL(cl.Flags().APIURL)))
}

func Run(ctx context.Context, stdout io.Writer, client *gdc.Client) error {
	status, err := client.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "status: %s\n", status.Status)
	fmt.Fprintf(stdout, "release: %s\n", status.DataRelease)
	fmt.Fprintf(stdout, "version: %d (%s)\n", status.Version, status.Tag)

	return nil
}
