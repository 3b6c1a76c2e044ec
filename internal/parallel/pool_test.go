package parallel

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_Defaults(t *testing.T) {
	wp := NewWorkerPool(0)
	defer wp.Shutdown()
	assert.Positive(t, wp.Workers())
}

func TestMap_PreservesOrder(t *testing.T) {
	wp := NewWorkerPool(4)
	defer wp.Shutdown()

	inputs := make([]int, 50)
	for i := range inputs {
		inputs[i] = i
	}
	got, err := Map(context.Background(), wp, inputs, func(_ context.Context, v int) int {
		if v%7 == 0 {
			time.Sleep(time.Millisecond)
		}
		return v * v
	})
	require.NoError(t, err)
	for i, v := range got {
		assert.Equal(t, i*i, v)
	}
}

func TestMap_BoundsConcurrency(t *testing.T) {
	const workers = 3
	wp := NewWorkerPool(workers)
	defer wp.Shutdown()

	var running, peak atomic.Int32
	_, err := Map(context.Background(), wp, make([]struct{}, 20), func(context.Context, struct{}) bool {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
		return true
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(workers))
	assert.Positive(t, peak.Load())
}

func TestMap_CancelledContext(t *testing.T) {
	wp := NewWorkerPool(2)
	defer wp.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	got, err := Map(ctx, wp, []int{1, 2, 3}, func(context.Context, int) int {
		calls.Add(1)
		return 1
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{0, 0, 0}, got)
	assert.Zero(t, calls.Load())
}

func TestSubmit_AfterShutdown(t *testing.T) {
	wp := NewWorkerPool(1)
	wp.Shutdown()
	wp.Shutdown()
	err := wp.Submit(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrPoolShutdown)
}

func TestShutdown_RunsAcceptedTasks(t *testing.T) {
	wp := NewWorkerPool(1)
	var done atomic.Int32
	for range 2 {
		require.NoError(t, wp.Submit(context.Background(), func() {
			time.Sleep(time.Millisecond)
			done.Add(1)
		}))
	}
	wp.Shutdown()
	assert.Equal(t, int32(2), done.Load())
}
