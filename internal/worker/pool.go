package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// Options tunes a pool run
type Options struct {
	Workers int
	// LaunchRate is the number of units started per second across all workers. <=0 disables pacing.
	LaunchRate float64
	// UnitTimeout bounds each unit's context. <=0 leaves units unbounded.
	UnitTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return o
}

// Result holds the outcome of one input item
type Result[In any, Out any] struct {
	Index  int
	Input  In
	Output Out
	Err    error
}

// ErrPanic wraps a panic raised by a unit
type ErrPanic struct {
	Value interface{}
}

func (e *ErrPanic) Error() string {
	return fmt.Sprintf("unit panicked: %v", e.Value)
}

// WorkerPool runs a function over a fixed set of items with bounded parallelism.
// Every item is processed exactly once, even after ctx is cancelled, so callers
// can turn cancellation into per-item results.
type WorkerPool[In any, Out any] struct {
	opts    Options
	process func(context.Context, In) (Out, error)
	logger  arbor.ILogger
}

func NewWorkerPool[In any, Out any](opts Options, process func(context.Context, In) (Out, error), logger arbor.ILogger) *WorkerPool[In, Out] {
	return &WorkerPool[In, Out]{
		opts:    opts.withDefaults(),
		process: process,
		logger:  logger,
	}
}

// Run processes all items and returns the results in completion order.
// onResult, when set, is called from a single goroutine as each item completes.
func (wp *WorkerPool[In, Out]) Run(ctx context.Context, items []In, onResult func(Result[In, Out])) []Result[In, Out] {
	if len(items) == 0 {
		return nil
	}

	workers := wp.opts.Workers
	if workers > len(items) {
		workers = len(items)
	}

	var limiter *rate.Limiter
	if wp.opts.LaunchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(wp.opts.LaunchRate), 1)
	}

	type job struct {
		idx int
		in  In
	}

	jobs := make(chan job)
	done := make(chan Result[In, Out], workers)

	wp.logger.Debug().
		Int("num_workers", workers).
		Int("items", len(items)).
		Float64("launch_rate", wp.opts.LaunchRate).
		Msg("Starting worker pool")

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := range jobs {
				if limiter != nil {
					// A cancelled wait still runs the unit, which observes ctx itself
					_ = limiter.Wait(ctx)
				}
				done <- wp.processOne(ctx, workerID, j.idx, j.in)
			}
		}(i)
	}

	go func() {
		defer close(jobs)
		for i, item := range items {
			jobs <- job{idx: i, in: item}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	results := make([]Result[In, Out], 0, len(items))
	for res := range done {
		results = append(results, res)
		if onResult != nil {
			onResult(res)
		}
	}

	wp.logger.Debug().Int("results", len(results)).Msg("Worker pool drained")
	return results
}

func (wp *WorkerPool[In, Out]) processOne(ctx context.Context, workerID, idx int, in In) (res Result[In, Out]) {
	res = Result[In, Out]{Index: idx, Input: in}

	unitCtx := ctx
	if wp.opts.UnitTimeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, wp.opts.UnitTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error().
				Int("worker_id", workerID).
				Int("index", idx).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in worker unit")
			res.Err = &ErrPanic{Value: r}
		}
	}()

	res.Output, res.Err = wp.process(unitCtx, in)
	return res
}
