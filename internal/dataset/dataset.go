// Package dataset combines per-sample expression files into one table.
package dataset

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/gdcpq/internal/expression"
	"github.com/askiada/gdcpq/internal/logging"
	"github.com/askiada/gdcpq/internal/metadata"
	"github.com/askiada/gdcpq/internal/parquetio"
	"github.com/askiada/gdcpq/pkg/pipeline"
	"github.com/askiada/gdcpq/pkg/pipeline/drawer"
	"github.com/askiada/gdcpq/pkg/pipeline/logger"
	"github.com/askiada/gdcpq/pkg/pipeline/measure"
	"github.com/askiada/gdcpq/pkg/pipeline/model"
)

var (
	ErrMissingFile     = errors.New("expression file not found")
	ErrDuplicateSample = errors.New("duplicate sample id")
	ErrNoSamples       = errors.New("no samples to combine")
)

// Key columns of the combined table, in order.
var KeyColumns = []string{"sample_id", "case_id", "project_id", "sample_type", "label"}

const defaultWorkers = 4

type Options struct {
	// Dir holds the downloaded expression files.
	Dir         string
	ValueColumn string
	// LabelField selects the metadata field copied into the label column.
	LabelField string
	// Projects keeps only the samples of these projects when not empty.
	Projects    []string
	Workers     int
	SkipMissing bool
	GraphFile   string
}

// Report describes a combined table.
type Report struct {
	Samples  int           `yaml:"samples"`
	Genes    int           `yaml:"genes"`
	Filtered int           `yaml:"filtered"`
	Missing  []string      `yaml:"missing,omitempty"`
	Duration time.Duration `yaml:"duration"`
}

type loaded struct {
	sample  metadata.Sample
	label   string
	profile *expression.Profile
}

func (o *Options) normalize() error {
	if o.Workers < 1 {
		o.Workers = defaultWorkers
	}
	if o.ValueColumn == "" {
		o.ValueColumn = expression.DefaultValueColumn
	}
	if o.LabelField == "" {
		o.LabelField = metadata.FieldSampleType
	}

	_, err := metadata.Sample{}.Label(o.LabelField)

	return err
}

func (o *Options) selected(samples []metadata.Sample) []metadata.Sample {
	if len(o.Projects) == 0 {
		return samples
	}

	projects := make(map[string]struct{}, len(o.Projects))
	for _, p := range o.Projects {
		projects[p] = struct{}{}
	}

	res := []metadata.Sample{}
	for _, s := range samples {
		if _, ok := projects[s.ProjectID]; ok {
			res = append(res, s)
		}
	}

	return res
}

func (o *Options) pipelineOptions(ctx context.Context) []model.PipelineOption {
	opts := []model.PipelineOption{logger.PipelineLogger(logging.FromContext(ctx))}
	if o.GraphFile != "" {
		m := measure.NewDefaultMeasure()
		opts = append(opts,
			measure.PipelineMeasure(m),
			drawer.PipelineDrawer(drawer.NewDOTDrawer(o.GraphFile), m),
		)
	}

	return opts
}

// Build reads the expression file of every sample and assembles the table.
// Rows are sorted by sample id and genes keep the order in which they first
// appear in that row order. A gene absent from a sample is a null.
func Build(ctx context.Context, samples []metadata.Sample, opts Options) (*parquetio.Table, *Report, error) {
	start := time.Now()

	err := opts.normalize()
	if err != nil {
		return nil, nil, err
	}

	_, err = metadata.Index(samples)
	if err != nil {
		return nil, nil, err
	}

	selected := opts.selected(samples)
	report := &Report{Filtered: len(samples) - len(selected)}
	if len(selected) == 0 {
		return nil, nil, ErrNoSamples
	}

	pipe, err := pipeline.New(ctx, opts.pipelineOptions(ctx)...)
	if err != nil {
		return nil, nil, err
	}

	root, err := pipeline.AddRootStep(pipe, "samples", func(ctx context.Context, rootChan chan<- metadata.Sample) error {
		for _, s := range selected {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- s:
			}
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	read, err := pipeline.AddStepOneToMany(pipe, "read", root, func(ctx context.Context, s metadata.Sample) ([]loaded, error) {
		return opts.read(ctx, s)
	}, pipeline.StepConcurrency[loaded](opts.Workers))
	if err != nil {
		return nil, nil, err
	}

	rows := []loaded{}
	seen := make(map[string]string)
	err = pipeline.AddSink(pipe, "collect", read, func(_ context.Context, l loaded) error {
		if l.profile == nil {
			report.Missing = append(report.Missing, l.sample.FileName)

			return nil
		}
		if other, ok := seen[l.sample.SampleID]; ok {
			return errors.Wrapf(ErrDuplicateSample, "%s in %s and %s", l.sample.SampleID, other, l.sample.FileName)
		}
		seen[l.sample.SampleID] = l.sample.FileName
		rows = append(rows, l)

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	err = pipe.Run()
	if err != nil {
		return nil, nil, err
	}

	if len(rows) == 0 {
		return nil, nil, errors.Wrapf(ErrNoSamples, "%d expression files missing", len(report.Missing))
	}

	table := assemble(rows)
	table.Metadata = map[string]string{
		"gdcpq.value_column": opts.ValueColumn,
		"gdcpq.label_field":  opts.LabelField,
	}

	sort.Strings(report.Missing)
	report.Samples = len(table.Rows)
	report.Genes = len(table.ValueColumns)
	report.Duration = time.Since(start)

	return table, report, nil
}

// read returns no element and no error for a missing file when SkipMissing
// is set, so that the sink can count it.
func (o *Options) read(ctx context.Context, s metadata.Sample) ([]loaded, error) {
	label, err := s.Label(o.LabelField)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(o.Dir, s.FileName)
	profile, err := expression.ReadFile(path, o.ValueColumn)
	if errors.Is(err, os.ErrNotExist) {
		if !o.SkipMissing {
			return nil, errors.Wrap(ErrMissingFile, path)
		}
		logging.FromContext(ctx).WithField("file", s.FileName).Warn("expression file missing, skipped")

		return []loaded{{sample: s}}, nil
	}
	if err != nil {
		return nil, err
	}

	return []loaded{{sample: s, label: label, profile: profile}}, nil
}

func assemble(rows []loaded) *parquetio.Table {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].sample.SampleID < rows[j].sample.SampleID
	})

	geneIdx := make(map[string]int)
	genes := []string{}
	for _, r := range rows {
		for _, gene := range r.profile.Genes {
			if _, ok := geneIdx[gene]; !ok {
				geneIdx[gene] = len(genes)
				genes = append(genes, gene)
			}
		}
	}

	table := &parquetio.Table{
		KeyColumns:   KeyColumns,
		ValueColumns: genes,
		Rows:         make([]parquetio.Row, len(rows)),
	}
	for i, r := range rows {
		values := make([]float64, len(genes))
		for j := range values {
			values[j] = math.NaN()
		}
		for j, gene := range r.profile.Genes {
			values[geneIdx[gene]] = r.profile.Values[j]
		}

		table.Rows[i] = parquetio.Row{
			Keys:   []string{r.sample.SampleID, r.sample.CaseID, r.sample.ProjectID, r.sample.SampleType, r.label},
			Values: values,
		}
	}

	return table
}

// Combine loads the metadata, builds the table and writes it to outputPath.
func Combine(ctx context.Context, metadataPath, outputPath string, opts Options, writeOpts parquetio.WriteOptions) (*Report, error) {
	samples, err := metadata.Load(metadataPath)
	if err != nil {
		return nil, err
	}

	table, report, err := Build(ctx, samples, opts)
	if err != nil {
		return nil, err
	}

	err = parquetio.WriteFile(outputPath, table, writeOpts)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(logrus.Fields{
		"file":    outputPath,
		"samples": report.Samples,
		"genes":   report.Genes,
	}).Info("table written")

	return report, nil
}
