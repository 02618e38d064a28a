package pipeline

import (
	"context"

	"github.com/askiada/gdcpq/pkg/pipeline/model"
)

// AddRootStep adds a step that produces the pipeline input.
// stepFn must stop sending when ctx is done. The output channel is closed when
// stepFn returns, unless StepKeepOpen is set.
func AddRootStep[O any](p *Pipeline, name string, stepFn func(ctx context.Context, rootChan chan<- O) error, opts ...StepOption[O]) (*model.Step[O], error) {
	if p == nil {
		return nil, ErrPipelineMustBeSet
	}

	output := make(chan O)
	step := &model.Step[O]{
		Details: &model.StepInfo{
			Type:       model.RootStepType,
			Name:       name,
			Concurrent: 1,
		},
		Output: output,
	}
	for _, opt := range opts {
		opt(step)
	}

	err := p.prepareStep(model.StartStep.Details, step.Details)
	if err != nil {
		return nil, err
	}

	errC := make(chan error, 1)
	p.goFn = append(p.goFn, func(ctx context.Context) {
		defer func() {
			if !step.KeepOpen {
				close(output)
			}
			close(errC)
		}()

		err := stepFn(ctx, output)
		if err != nil {
			errC <- err
		}
	})
	p.errcList.add(newErrorChan(name, errC))

	return step, nil
}
