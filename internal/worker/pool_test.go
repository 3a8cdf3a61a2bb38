package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestWorkerPool_ProcessesEveryItem(t *testing.T) {
	pool := NewWorkerPool(Options{Workers: 3}, func(ctx context.Context, n int) (int, error) {
		return n * n, nil
	}, arbor.NewLogger())

	var callbacks int
	results := pool.Run(context.Background(), []int{1, 2, 3, 4, 5}, func(Result[int, int]) { callbacks++ })

	require.Len(t, results, 5)
	assert.Equal(t, 5, callbacks)
	seen := map[int]int{}
	for _, r := range results {
		require.NoError(t, r.Err)
		seen[r.Input] = r.Output
	}
	assert.Equal(t, map[int]int{1: 1, 2: 4, 3: 9, 4: 16, 5: 25}, seen)
}

func TestWorkerPool_BoundsParallelism(t *testing.T) {
	var active, peak atomic.Int32
	pool := NewWorkerPool(Options{Workers: 2}, func(ctx context.Context, n int) (int, error) {
		cur := active.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return n, nil
	}, arbor.NewLogger())

	results := pool.Run(context.Background(), []int{1, 2, 3, 4, 5, 6}, nil)

	assert.Len(t, results, 6)
	assert.Equal(t, int32(2), peak.Load())
}

func TestWorkerPool_CompletionOrder(t *testing.T) {
	pool := NewWorkerPool(Options{Workers: 2}, func(ctx context.Context, d time.Duration) (time.Duration, error) {
		time.Sleep(d)
		return d, nil
	}, arbor.NewLogger())

	results := pool.Run(context.Background(), []time.Duration{60 * time.Millisecond, time.Millisecond}, nil)

	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, 0, results[1].Index)
}

func TestWorkerPool_UnitTimeout(t *testing.T) {
	pool := NewWorkerPool(Options{Workers: 1, UnitTimeout: 20 * time.Millisecond}, func(ctx context.Context, n int) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, arbor.NewLogger())

	results := pool.Run(context.Background(), []int{1}, nil)

	require.Len(t, results, 1)
	assert.True(t, errors.Is(results[0].Err, context.DeadlineExceeded))
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	pool := NewWorkerPool(Options{Workers: 2}, func(ctx context.Context, n int) (int, error) {
		if n == 2 {
			panic("boom")
		}
		return n, nil
	}, arbor.NewLogger())

	results := pool.Run(context.Background(), []int{1, 2, 3}, nil)

	require.Len(t, results, 3)
	var panicked int
	for _, r := range results {
		var pe *ErrPanic
		if errors.As(r.Err, &pe) {
			panicked++
			assert.Equal(t, 2, r.Input)
			assert.Equal(t, "boom", pe.Value)
		}
	}
	assert.Equal(t, 1, panicked)
}

func TestWorkerPool_CancelledContextStillYieldsResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewWorkerPool(Options{Workers: 2, LaunchRate: 1}, func(ctx context.Context, n int) (int, error) {
		return n, ctx.Err()
	}, arbor.NewLogger())

	results := pool.Run(ctx, []int{1, 2, 3, 4}, nil)

	require.Len(t, results, 4)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestWorkerPool_Empty(t *testing.T) {
	pool := NewWorkerPool(Options{}, func(ctx context.Context, n int) (int, error) { return n, nil }, arbor.NewLogger())
	assert.Nil(t, pool.Run(context.Background(), nil, nil))
}
