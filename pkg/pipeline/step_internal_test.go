package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/gdcpq/pkg/pipeline/model"
)

var concurrencyCases = map[string]struct {
	concurrent int
}{
	"sequential":     {concurrent: 1},
	"sequential v2":  {concurrent: 0},
	"concurrent 2":   {concurrent: 2},
	"concurrent 100": {concurrent: 100},
}

func runTestOneToMany(
	ctx context.Context,
	t *testing.T,
	input chan int,
	concurrent int,
	fn func(context.Context, int) ([]int, error),
) ([]int, error) {
	t.Helper()

	in := &model.Step[int]{Output: input, Details: &model.StepInfo{Name: "input"}}
	out := &model.Step[int]{Output: make(chan int), Details: &model.StepInfo{Name: "output", Concurrent: concurrent}}
	got := make(chan []int, 1)

	go func() {
		got <- processOutputChan(t, out.Output)
	}()

	err := oneToMany(ctx, &Pipeline{}, in, out, fn)
	close(out.Output)

	return <-got, err
}

func TestOneToMany(t *testing.T) {
	t.Parallel()

	for name, tc := range concurrencyCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := runTestOneToMany(t.Context(), t, createInputChan(t, 10), tc.concurrent, func(_ context.Context, i int) ([]int, error) {
				return []int{i, i * 100}, nil
			})
			require.NoError(t, err)
			assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 0, 100, 200, 300, 400, 500, 600, 700, 800, 900}, got)
		})
	}
}

func TestOneToManyEmpty(t *testing.T) {
	t.Parallel()

	got, err := runTestOneToMany(t.Context(), t, createInputChan(t, 10), 3, func(_ context.Context, i int) ([]int, error) {
		if i%2 == 0 {
			return nil, nil
		}

		return []int{i}, nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 3, 5, 7, 9}, got)
}

func TestOneToManyCancelInput(t *testing.T) {
	t.Parallel()

	for name, tc := range concurrencyCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			got, err := runTestOneToMany(ctx, t, createInputChanWithCancel(t, 5, cancel), tc.concurrent, func(_ context.Context, i int) ([]int, error) {
				return []int{i}, nil
			})
			require.ErrorIs(t, err, context.Canceled)
			assert.Subset(t, []int{0, 1, 2, 3, 4}, got)
		})
	}
}

func TestOneToManyError(t *testing.T) {
	t.Parallel()

	for name, tc := range concurrencyCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			// the input is never drained after the error
			input := createInputChan(t, 10)
			_, err := runTestOneToMany(ctx, t, input, tc.concurrent, func(_ context.Context, i int) ([]int, error) {
				if i == 5 {
					return nil, assert.AnError
				}

				return []int{i}, nil
			})
			require.ErrorIs(t, err, assert.AnError)
			cancel()
		})
	}
}
