package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/gdcpq/pkg/pipeline/model"
)

func prepareMerger[I any](pipe *Pipeline, name string, steps ...*model.Step[I]) (*model.Step[I], error) {
	outputStep := &model.Step[I]{
		Details: &model.StepInfo{
			Type:       model.MergerStepType,
			Name:       name,
			Concurrent: 1,
		},
		Output: make(chan I),
	}

	stepInfos := make([]*model.StepInfo, len(steps))
	for i, step := range steps {
		stepInfos[i] = step.Details
	}

	for _, opt := range pipe.opts {
		err := opt.PrepareMerger(stepInfos, outputStep.Details)
		if err != nil {
			return nil, errors.Wrap(err, "unable to run prepare merger function")
		}
	}

	return outputStep, nil
}

func runStepMerger[I any](ctx context.Context, pipe *Pipeline, step, outputStep *model.Step[I]) error {
	for {
		startIter := time.Now()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-step.Output:
			if !ok {
				return nil
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case outputStep.Output <- entry:
			}

			endIter := time.Since(startIter)
			for _, opt := range pipe.opts {
				err := opt.OnMergerOutput(step.Details, outputStep.Details, endIter)
				if err != nil {
					return errors.Wrap(err, "unable to run merger output function")
				}
			}
		}
	}
}

// AddMerger adds a merger step to the pipeline. It merges the output of the steps into a single channel.
// Each input is consumed by its own goroutine, so the output order is not preserved.
func AddMerger[I any](pipe *Pipeline, name string, steps ...*model.Step[I]) (*model.Step[I], error) {
	if pipe == nil {
		return nil, ErrPipelineMustBeSet
	}
	if len(steps) == 0 {
		return nil, ErrInputMustBeSet
	}
	for _, step := range steps {
		if step == nil {
			return nil, ErrInputMustBeSet
		}
		ensureDetails(step)
	}

	outputStep, err := prepareMerger(pipe, name, steps...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to prepare merger")
	}

	errC := make(chan error, len(steps))
	wgrp := sync.WaitGroup{}
	wgrp.Add(len(steps))

	pipe.goFn = append(pipe.goFn, func(context.Context) {
		wgrp.Wait()
		close(errC)
		close(outputStep.Output)
	})

	for _, step := range steps {
		step := step
		pipe.goFn = append(pipe.goFn, func(ctx context.Context) {
			defer wgrp.Done()

			err := runStepMerger(ctx, pipe, step, outputStep)
			if err != nil {
				errC <- err
			}
		})
	}

	pipe.errcList.add(newErrorChan(name, errC))

	return outputStep, nil
}
