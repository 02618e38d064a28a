// Command gdcpq downloads GDC expression files and combines them into Parquet
// tables.
//
// Flag defaults come from the file named by GDCPQ_CONFIG, if any, and from
// GDCPQ_* environment variables (GDCPQ_WORKERS, GDCPQ_API_URL, ...).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/youta-t/flarc"

	"github.com/askiada/gdcpq/cmd/gdcpq/subcommands/combine"
	"github.com/askiada/gdcpq/cmd/gdcpq/subcommands/common"
	"github.com/askiada/gdcpq/cmd/gdcpq/subcommands/download"
	"github.com/askiada/gdcpq/cmd/gdcpq/subcommands/inspect"
	"github.com/askiada/gdcpq/cmd/gdcpq/subcommands/status"
	"github.com/askiada/gdcpq/cmd/gdcpq/subcommands/verify"
	"github.com/askiada/gdcpq/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd, err := newCommand(os.Getenv(config.EnvPrefix + "_CONFIG"))
	if err != nil {
		logrus.WithError(err).Fatal("unable to build command")
	}

	code := flarc.Run(ctx, cmd, flarc.WithHelp(true))
	cancel()
	os.Exit(code)
}

func newCommand(configPath string) (flarc.Command, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	downloadCmd, err := download.New(cfg)
	if err != nil {
		return nil, err
	}
	verifyCmd, err := verify.New(cfg)
	if err != nil {
		return nil, err
	}
	statusCmd, err := status.New(cfg)
	if err != nil {
		return nil, err
	}
	combineCmd, err := combine.New(cfg)
	if err != nil {
		return nil, err
	}
	inspectCmd, err := inspect.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Download GDC expression files and convert them to Parquet.",
		common.Flags(cfg),
		flarc.WithSubcommand("download", downloadCmd),
		flarc.WithSubcommand("verify", verifyCmd),
		flarc.WithSubcommand("status", statusCmd),
		flarc.WithSubcommand("combine", combineCmd),
		flarc.WithSubcommand("inspect", inspectCmd),
	)
}
