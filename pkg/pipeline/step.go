package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/gdcpq/pkg/pipeline/model"
)

func sequentialOneToManyFn[I any, O any](ctx context.Context, p *Pipeline, goIdx int, input *model.Step[I], output *model.Step[O], oneToManyFn func(context.Context, I) ([]O, error)) error {
	for {
		startIter := time.Now()
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "go routine %d", goIdx)
		case in, ok := <-input.Output:
			if !ok {
				return nil
			}

			startFn := time.Now()
			outs, err := oneToManyFn(ctx, in)
			if err != nil {
				return errors.Wrapf(err, "go routine %d", goIdx)
			}
			endFn := time.Since(startFn)

			for _, out := range outs {
				// check the context again so that running goroutines stop
				// adding new elements to the pipeline
				select {
				case <-ctx.Done():
					return errors.Wrapf(ctx.Err(), "go routine %d", goIdx)
				case output.Output <- out:
				}
			}

			err = p.onStepOutput(input.Details, output.Details, time.Since(startIter)-endFn, endFn)
			if err != nil {
				return errors.Wrapf(err, "go routine %d", goIdx)
			}
		}
	}
}

func oneToMany[I any, O any](ctx context.Context, p *Pipeline, input *model.Step[I], output *model.Step[O], oneToManyFn func(context.Context, I) ([]O, error)) error {
	if output.Details.Concurrent <= 1 {
		return sequentialOneToManyFn(ctx, p, 0, input, output, oneToManyFn)
	}

	// each consumer stops as soon as one of them fails
	errGrp, dCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(output.Details.Concurrent)
	for goIdx := 0; goIdx < output.Details.Concurrent; goIdx++ {
		goIdx := goIdx
		errGrp.Go(func() error {
			return sequentialOneToManyFn(dCtx, p, goIdx, input, output, oneToManyFn)
		})
	}

	return errGrp.Wait()
}

func addStep[I any, O any](p *Pipeline, name string, input *model.Step[I], oneToManyFn func(context.Context, I) ([]O, error), opts ...StepOption[O]) (*model.Step[O], error) {
	if p == nil {
		return nil, ErrPipelineMustBeSet
	}
	if input == nil {
		return nil, ErrInputMustBeSet
	}
	ensureDetails(input)

	step := &model.Step[O]{
		Details: &model.StepInfo{
			Type:       model.NormalStepType,
			Name:       name,
			Concurrent: 1,
		},
		Output: make(chan O),
	}
	for _, opt := range opts {
		opt(step)
	}
	if step.Details.Concurrent < 1 {
		step.Details.Concurrent = 1
	}

	err := p.prepareStep(input.Details, step.Details)
	if err != nil {
		return nil, err
	}

	errC := make(chan error, 1)
	p.goFn = append(p.goFn, func(ctx context.Context) {
		defer func() {
			close(step.Output)
			close(errC)
		}()

		err := oneToMany(ctx, p, input, step, oneToManyFn)
		if err != nil {
			errC <- err
		}
	})
	p.errcList.add(newErrorChan(name, errC))

	return step, nil
}

// AddStepOneToOne adds a step producing exactly one output per input.
func AddStepOneToOne[I any, O any](p *Pipeline, name string, input *model.Step[I], oneToOneFn func(context.Context, I) (O, error), opts ...StepOption[O]) (*model.Step[O], error) {
	return addStep(p, name, input, func(ctx context.Context, in I) ([]O, error) {
		out, err := oneToOneFn(ctx, in)
		if err != nil {
			return nil, err
		}

		return []O{out}, nil
	}, opts...)
}

// AddStepOneToMany adds a step producing any number of outputs per input.
func AddStepOneToMany[I any, O any](p *Pipeline, name string, input *model.Step[I], oneToManyFn func(context.Context, I) ([]O, error), opts ...StepOption[O]) (*model.Step[O], error) {
	return addStep(p, name, input, oneToManyFn, opts...)
}

// ensureDetails names steps built by hand outside of the pipeline.
func ensureDetails[I any](step *model.Step[I]) {
	if step.Details == nil {
		step.Details = &model.StepInfo{
			Type:       model.RootStepType,
			Name:       "external",
			Concurrent: 1,
		}
	}
}
