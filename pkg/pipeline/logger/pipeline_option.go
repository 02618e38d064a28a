// Package logger provides a pipeline option logging the lifecycle of each step.
package logger

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/askiada/gdcpq/pkg/pipeline/model"
)

type pipelineLogger struct {
	entry *logrus.Entry

	mu     sync.Mutex
	counts map[string]int64
	start  time.Time
}

func (pl *pipelineLogger) New() error {
	pl.start = time.Now()

	return nil
}

func (pl *pipelineLogger) prepared(parent string, step *model.StepInfo) {
	pl.entry.WithFields(logrus.Fields{
		"step":       step.Name,
		"type":       step.Type,
		"parent":     parent,
		"concurrent": step.Concurrent,
	}).Debug("step added")
}

func (pl *pipelineLogger) count(name string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.counts[name]++
}

func (pl *pipelineLogger) PrepareStep(parentStep, step *model.StepInfo) error {
	pl.prepared(parentStep.Name, step)

	return nil
}

func (pl *pipelineLogger) OnStepOutput(_, step *model.StepInfo, _, _ time.Duration) error {
	pl.count(step.Name)

	return nil
}

func (pl *pipelineLogger) PrepareSplitter(parentStep, splitterStep *model.StepInfo) error {
	pl.prepared(parentStep.Name, splitterStep)

	return nil
}

func (pl *pipelineLogger) OnSplitterOutput(_, splitterStep *model.StepInfo, _, _ time.Duration) error {
	pl.count(splitterStep.Name)

	return nil
}

func (pl *pipelineLogger) PrepareMerger(parentSteps []*model.StepInfo, step *model.StepInfo) error {
	for _, parent := range parentSteps {
		pl.prepared(parent.Name, step)
	}

	return nil
}

func (pl *pipelineLogger) OnMergerOutput(_ *model.StepInfo, outputStep *model.StepInfo, _ time.Duration) error {
	pl.count(outputStep.Name)

	return nil
}

func (pl *pipelineLogger) PrepareSink(parentStep, step *model.StepInfo) error {
	pl.prepared(parentStep.Name, step)

	return nil
}

func (pl *pipelineLogger) OnSinkOutput(_, step *model.StepInfo, _, _ time.Duration) error {
	pl.count(step.Name)

	return nil
}

func (pl *pipelineLogger) AfterSink(step *model.StepInfo, totalDuration time.Duration) error {
	pl.entry.WithFields(logrus.Fields{
		"step":     step.Name,
		"elements": pl.Count(step.Name),
		"elapsed":  totalDuration.Round(time.Millisecond).String(),
	}).Debug("sink done")

	return nil
}

func (pl *pipelineLogger) Finish() error {
	pl.mu.Lock()
	fields := make(logrus.Fields, len(pl.counts)+1)
	for name, n := range pl.counts {
		fields[name] = n
	}
	pl.mu.Unlock()
	fields["elapsed"] = time.Since(pl.start).Round(time.Millisecond).String()

	pl.entry.WithFields(fields).Debug("pipeline finished")

	return nil
}

// Count returns the number of elements the step has emitted so far.
func (pl *pipelineLogger) Count(name string) int64 {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	return pl.counts[name]
}

// PipelineLogger logs the steps at debug level on entry.
func PipelineLogger(entry *logrus.Entry) model.PipelineOption {
	return &pipelineLogger{
		entry:  entry,
		counts: make(map[string]int64),
	}
}
