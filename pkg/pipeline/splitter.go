package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/gdcpq/pkg/pipeline/model"
)

// Splitter fans the input of a step out to Total outputs.
type Splitter[I any] struct {
	mu            sync.Mutex
	currIdx       int
	mainStep      *model.Step[I]
	splittedSteps []*model.Step[I]
	bufferSize    int
	Total         int
}

// Get returns the next unclaimed output. It returns false once all the
// outputs have been claimed.
func (s *Splitter[I]) Get() (*model.Step[I], bool) {
	s.mu.Lock()
	defer func() {
		s.currIdx++
		s.mu.Unlock()
	}()
	if s.currIdx >= len(s.splittedSteps) {
		return nil, false
	}

	return s.splittedSteps[s.currIdx], true
}

// SplitterFn decides whether an element is forwarded to one splitter output.
type SplitterFn[I any] func(input I) (bool, error)

// AddSplitter adds a splitter step. Every element is copied to each of the
// total outputs.
func AddSplitter[I any](p *Pipeline, name string, input *model.Step[I], total int, opts ...SplitterOption[I]) (*Splitter[I], error) {
	if total <= 0 {
		return nil, ErrSplitterTotal
	}

	fns := make([]SplitterFn[I], total)
	for i := range fns {
		fns[i] = func(I) (bool, error) { return true, nil }
	}

	return addSplitter(p, name, input, fns, opts...)
}

// AddSplitterFn adds a splitter step with one output per function. An element
// is forwarded to output i when fns[i] returns true.
func AddSplitterFn[I any](p *Pipeline, name string, input *model.Step[I], fns []SplitterFn[I], opts ...SplitterOption[I]) (*Splitter[I], error) {
	if len(fns) == 0 {
		return nil, ErrSplitterTotal
	}

	return addSplitter(p, name, input, fns, opts...)
}

func addSplitter[I any](p *Pipeline, name string, input *model.Step[I], fns []SplitterFn[I], opts ...SplitterOption[I]) (*Splitter[I], error) {
	if p == nil {
		return nil, ErrPipelineMustBeSet
	}
	if input == nil {
		return nil, ErrInputMustBeSet
	}
	ensureDetails(input)

	total := len(fns)
	splitter := &Splitter[I]{
		Total: total,
		mainStep: &model.Step[I]{
			Details: &model.StepInfo{
				Type:       model.SplitterStepType,
				Name:       name,
				Concurrent: 1,
			},
		},
	}
	for _, opt := range opts {
		opt(splitter)
	}
	if splitter.bufferSize < 1 {
		splitter.bufferSize = 1
	}
	splitter.mainStep.Details.BufferSize = splitter.bufferSize

	splitter.splittedSteps = make([]*model.Step[I], total)
	for i := range splitter.splittedSteps {
		splitter.splittedSteps[i] = &model.Step[I]{
			Details: splitter.mainStep.Details,
			Output:  make(chan I),
		}
	}

	for _, opt := range p.opts {
		err := opt.PrepareSplitter(input.Details, splitter.mainStep.Details)
		if err != nil {
			return nil, errors.Wrap(err, "unable to run prepare splitter function")
		}
	}

	// one error per branch plus one for the distributor
	errC := make(chan error, total+1)
	p.goFn = append(p.goFn, func(ctx context.Context) {
		splitter.run(ctx, p, input, fns, errC)
	})
	p.errcList.add(newErrorChan(name, errC))

	return splitter, nil
}

func (s *Splitter[I]) runBranch(ctx context.Context, idx int, buf <-chan I, fn SplitterFn[I], errC chan<- error) {
	output := s.splittedSteps[idx].Output
	defer close(output)

	for elem := range buf {
		ok, err := fn(elem)
		if err != nil {
			errC <- errors.Wrapf(err, "unable to run splitter function %d", idx)

			return
		}
		if !ok {
			continue
		}

		select {
		case <-ctx.Done():
			errC <- ctx.Err()

			return
		case output <- elem:
		}
	}
}

func (s *Splitter[I]) run(ctx context.Context, p *Pipeline, input *model.Step[I], fns []SplitterFn[I], errC chan<- error) {
	buffers := make([]chan I, s.Total)
	wgrp := sync.WaitGroup{}
	wgrp.Add(s.Total)
	for i := range buffers {
		buffers[i] = make(chan I, s.bufferSize)
		go func(i int) {
			defer wgrp.Done()
			s.runBranch(ctx, i, buffers[i], fns[i], errC)
		}(i)
	}

	defer func() {
		for _, buf := range buffers {
			close(buf)
		}
		wgrp.Wait()
		close(errC)
	}()

	for {
		startIter := time.Now()
		select {
		case <-ctx.Done():
			errC <- ctx.Err()

			return
		case entry, ok := <-input.Output:
			if !ok {
				return
			}

			startFn := time.Now()
			for _, buf := range buffers {
				select {
				case <-ctx.Done():
					errC <- ctx.Err()

					return
				case buf <- entry:
				}
			}
			endFn := time.Since(startFn)

			for _, opt := range p.opts {
				err := opt.OnSplitterOutput(input.Details, s.mainStep.Details, time.Since(startIter)-endFn, endFn)
				if err != nil {
					errC <- errors.Wrap(err, "unable to run splitter output function")

					return
				}
			}
		}
	}
}
