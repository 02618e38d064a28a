// Package pipeline runs data through a graph of steps connected by channels.
//
// A pipeline starts with a root step producing elements, continues with steps
// transforming them (optionally with several goroutines per step), can fan out
// with a splitter and fan back in with a merger, and ends with sinks.
//
//	pipe, _ := pipeline.New(ctx)
//	root, _ := pipeline.AddRootStep(pipe, "numbers", produce)
//	double, _ := pipeline.AddStepOneToOne(pipe, "double", root, fn, pipeline.StepConcurrency[int](4))
//	_ = pipeline.AddSink(pipe, "print", double, print)
//	err := pipe.Run()
//
// The pipeline stops on the first error returned by any step: the shared
// context is cancelled and Run returns that error, prefixed with the step name.
//
// Options implementing model.PipelineOption observe the construction and the
// execution of every step. See the measure, drawer and logger packages.
package pipeline
