// Package common holds what the gdcpq subcommands share: the global flags and
// the task adapter building the logger from them.
package common

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youta-t/flarc"

	"github.com/askiada/gdcpq/internal/config"
	"github.com/askiada/gdcpq/internal/logging"
)

type CommonFlags struct {
	LogLevel  string `flag:"log-level" metavar:"LEVEL" help:"log level: trace, debug, info, warn or error"`
	LogFormat string `flag:"log-format" metavar:"text|json" help:"log format"`
}

// Flags returns the global flags with their defaults taken from cfg.
func Flags(cfg *config.Config) CommonFlags {
	return CommonFlags{
		LogLevel:  cfg.LogLevel,
		LogFormat: cfg.LogFormat,
	}
}

type Task[T any] func(
	ctx context.Context,
	log *logrus.Entry,
	cl flarc.Commandline[T],
	params []any,
) error

// NewTask adapts task to flarc. The logger writes to the command stderr and
// is also stored in ctx.
func NewTask[T any](task Task[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlags CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlags = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		logger, err := logging.New(commonFlags.LogLevel, commonFlags.LogFormat, cl.Stderr())
		if err != nil {
			return errors.Wrap(flarc.ErrUsage, err.Error())
		}
		entry := logger.WithField("command", cl.Fullname())

		return task(logging.WithLogger(ctx, entry), entry, cl, newpos)
	}
}

// Projects collects a repeatable --project flag.
type Projects []string

func (p *Projects) String() string {
	if p == nil {
		return ""
	}

	return strings.Join(*p, ",")
}

// Set accepts one project id, or several separated by commas.
func (p *Projects) Set(v string) error {
	for _, project := range strings.Split(v, ",") {
		project = strings.TrimSpace(project)
		if project == "" {
			return errors.Errorf("empty project id in %q", v)
		}
		*p = append(*p, project)
	}

	return nil
}
