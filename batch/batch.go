package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

const DefaultWorkers = 4

var ErrEmptyInput = errors.New("no JPEG files provided")

// Result is the outcome for one input path. Output is set only when Err is nil.
type Result struct {
	Path   string
	Output string
	Err    error
}

func (r Result) Failed() bool {
	return r.Err != nil
}

type Recorder interface {
	Record(ctx context.Context, res Result) error
}

type Runner struct {
	// Workers is the pool size; zero or less means DefaultWorkers.
	Workers int
	Process func(ctx context.Context, path string) (string, error)
	Logger  *slog.Logger
	// Recorder is optional. Its errors are logged and never change a file's result.
	Recorder Recorder
}

type job struct {
	i    int
	path string
}

// Run processes every path on a fixed pool of workers and returns one result per path, in input
// order. A failure or panic in one file never affects the others.
func (r *Runner) Run(ctx context.Context, paths []string) ([]Result, error) {
	if len(paths) == 0 {
		return nil, ErrEmptyInput
	}

	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]Result, len(paths))
	jobs := make(chan job, len(paths))
	for i, path := range paths {
		jobs <- job{i, path}
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res := r.runOne(ctx, j.path)
				results[j.i] = res
				r.record(ctx, res)
			}
		}()
	}
	wg.Wait()

	if n := Failed(results); n > 0 {
		return results, fmt.Errorf("%d/%d files failed", n, len(results))
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, path string) (res Result) {
	res.Path = path
	defer func() {
		if p := recover(); p != nil {
			res.Output = ""
			res.Err = fmt.Errorf("panic processing %s: %v", path, p)
		}
	}()

	out, err := r.Process(ctx, path)
	if err != nil {
		res.Err = err
		return res
	}
	res.Output = out
	return res
}

func (r *Runner) record(ctx context.Context, res Result) {
	if r.Recorder == nil {
		return
	}
	if err := r.Recorder.Record(ctx, res); err != nil {
		r.logger().Warn("error recording result", "path", res.Path, "err", err)
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func Failed(results []Result) int {
	n := 0
	for _, res := range results {
		if res.Failed() {
			n++
		}
	}
	return n
}
