package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/gdcpq/pkg/pipeline/model"
)

func prepareSink[I any](pipe *Pipeline, name string, input *model.Step[I]) (*model.StepInfo, error) {
	if pipe == nil {
		return nil, ErrPipelineMustBeSet
	}
	if input == nil {
		return nil, ErrInputMustBeSet
	}
	ensureDetails(input)

	details := &model.StepInfo{
		Type:       model.SinkStepType,
		Name:       name,
		Concurrent: 1,
	}
	for _, opt := range pipe.opts {
		err := opt.PrepareSink(input.Details, details)
		if err != nil {
			return nil, errors.Wrap(err, "unable to run prepare sink function")
		}
	}

	return details, nil
}

func (p *Pipeline) afterSink(details *model.StepInfo) error {
	for _, opt := range p.opts {
		err := opt.AfterSink(details, time.Since(p.startTime))
		if err != nil {
			return errors.Wrap(err, "unable to run after sink function")
		}
	}

	return nil
}

// AddSink adds a step consuming the input one element at a time.
// The sink runs in a single goroutine, so sinkFn does not need to be safe for concurrent use.
func AddSink[I any](pipe *Pipeline, name string, input *model.Step[I], sinkFn func(ctx context.Context, input I) error) error {
	details, err := prepareSink(pipe, name, input)
	if err != nil {
		return err
	}

	consume := func(ctx context.Context) error {
		for {
			startIter := time.Now()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case in, ok := <-input.Output:
				if !ok {
					return nil
				}

				startFn := time.Now()
				err := sinkFn(ctx, in)
				if err != nil {
					return err
				}
				endFn := time.Since(startFn)

				for _, opt := range pipe.opts {
					err := opt.OnSinkOutput(input.Details, details, time.Since(startIter)-endFn, endFn)
					if err != nil {
						return errors.Wrap(err, "unable to run sink output function")
					}
				}
			}
		}
	}

	errC := make(chan error, 1)
	pipe.goFn = append(pipe.goFn, func(ctx context.Context) {
		defer close(errC)

		err := consume(ctx)
		if err == nil {
			err = pipe.afterSink(details)
		}
		if err != nil {
			errC <- err
		}
	})
	pipe.errcList.add(newErrorChan(name, errC))

	return nil
}

// AddSinkFromChan adds a step consuming the whole input channel.
func AddSinkFromChan[I any](pipe *Pipeline, name string, input *model.Step[I], sinkFn func(ctx context.Context, input <-chan I) error) error {
	details, err := prepareSink(pipe, name, input)
	if err != nil {
		return err
	}

	errC := make(chan error, 1)
	pipe.goFn = append(pipe.goFn, func(ctx context.Context) {
		defer close(errC)

		err := sinkFn(ctx, input.Output)
		if err == nil {
			err = pipe.afterSink(details)
		}
		if err != nil {
			errC <- err
		}
	})
	pipe.errcList.add(newErrorChan(name, errC))

	return nil
}
