package download

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/gdcpq/internal/manifest"
	"github.com/askiada/gdcpq/internal/units"
)

// ErrIncomplete is returned by Summary.Err when at least one file failed.
var ErrIncomplete = errors.New("some files failed to download")

type Status string

const (
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Result is the outcome for one manifest entry.
type Result struct {
	Entry    manifest.Entry
	Status   Status
	Bytes    int64
	Attempts int
	Err      error
}

type Failure struct {
	ID       string `yaml:"id"`
	Filename string `yaml:"filename"`
	Attempts int    `yaml:"attempts"`
	Error    string `yaml:"error"`
}

// Summary aggregates the results of a run.
type Summary struct {
	Total     int           `yaml:"total"`
	Completed int           `yaml:"completed"`
	Skipped   int           `yaml:"skipped"`
	Failed    int           `yaml:"failed"`
	Bytes     int64         `yaml:"bytes"`
	Duration  time.Duration `yaml:"duration"`
	Failures  []Failure     `yaml:"failures,omitempty"`
}

func (s *Summary) add(res Result) {
	switch res.Status {
	case StatusCompleted:
		s.Completed++
		s.Bytes += res.Bytes
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++

		msg := "unknown error"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		s.Failures = append(s.Failures, Failure{
			ID:       res.Entry.ID.String(),
			Filename: res.Entry.Filename,
			Attempts: res.Attempts,
			Error:    msg,
		})
	}
}

func (s *Summary) clone() *Summary {
	cp := *s
	cp.Failures = append([]Failure(nil), s.Failures...)
	sort.Slice(cp.Failures, func(i, j int) bool {
		return cp.Failures[i].Filename < cp.Failures[j].Filename
	})

	return &cp
}

// Processed is the number of entries with a result.
func (s *Summary) Processed() int {
	return s.Completed + s.Skipped + s.Failed
}

// Err returns ErrIncomplete when a file failed. Re-running the download only
// fetches the missing files.
func (s *Summary) Err() error {
	if s.Failed > 0 {
		return errors.Wrapf(ErrIncomplete, "%d of %d files failed", s.Failed, s.Total)
	}

	return nil
}

// WriteYAML writes the summary as a YAML document.
func (s *Summary) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(s)
	if err != nil {
		return errors.Wrap(err, "unable to encode summary")
	}

	return errors.Wrap(enc.Close(), "unable to flush summary")
}

// WriteText writes the summary for a terminal.
func (s *Summary) WriteText(w io.Writer) error {
	lines := []string{
		"",
		"Download Summary:",
		fmt.Sprintf("Total files processed: %d", s.Total),
		fmt.Sprintf("Successfully downloaded: %d (%s)", s.Completed, units.FormatSize(s.Bytes)),
		fmt.Sprintf("Already existed (skipped): %d", s.Skipped),
		fmt.Sprintf("Failed downloads: %d", s.Failed),
		fmt.Sprintf("Total time: %s", units.FormatDuration(s.Duration)),
	}

	if s.Failed > 0 {
		lines = append(lines, "", "Failed downloads:")
		for _, failure := range s.Failures {
			lines = append(lines, fmt.Sprintf("  - %s: %s", failure.Filename, failure.Error))
		}
		lines = append(lines, "", "Re-run the command to retry failed downloads.")
	}

	for _, line := range lines {
		_, err := fmt.Fprintln(w, line)
		if err != nil {
			return errors.Wrap(err, "unable to write summary")
		}
	}

	return nil
}
