package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(_ context.Context, n int) int { return n * n }

func TestNew_InvalidSize(t *testing.T) {
	_, err := New(0, square)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestMap_AllItems(t *testing.T) {
	p, err := New(3, square)
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, 3, p.Size())

	got, err := p.Map(context.Background(), []int{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 4, 9, 16, 25}, got)
}

func TestMap_EmptyBatch(t *testing.T) {
	p, err := New(2, square)
	require.NoError(t, err)
	defer p.Close()

	got, err := p.Map(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// TestMap_BoundsConcurrency checks that no more than size calls overlap.
func TestMap_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	fn := func(_ context.Context, n int) int {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return n
	}

	p, err := New(3, fn)
	require.NoError(t, err)
	defer p.Close()

	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}
	got, err := p.Map(context.Background(), items)
	require.NoError(t, err)
	assert.Len(t, got, 20)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestMap_ReusedAcrossBatches(t *testing.T) {
	var calls atomic.Int32
	p, err := New(2, func(_ context.Context, n int) int {
		calls.Add(1)
		return n
	})
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 3; i++ {
		_, err := p.Map(context.Background(), []int{1, 2})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(6), calls.Load())
}

func TestMap_PanicIsPoolFailure(t *testing.T) {
	p, err := New(2, func(_ context.Context, n int) int {
		if n == 2 {
			panic("boom")
		}
		return n
	})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Map(context.Background(), []int{1, 2, 3})
	require.ErrorIs(t, err, ErrPoolFailure)

	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "boom", pe.Value)

	// Workers survive a recovered panic.
	got, err := p.Map(context.Background(), []int{5})
	require.NoError(t, err)
	assert.Equal(t, []int{5}, got)
}

func TestMap_ClosedPool(t *testing.T) {
	p, err := New(1, square)
	require.NoError(t, err)
	p.Close()
	p.Close()

	_, err = p.Map(context.Background(), []int{1})
	require.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, err, ErrPoolFailure)
}

func TestMap_CancelledBeforeStart(t *testing.T) {
	var calls atomic.Int32
	p, err := New(2, func(_ context.Context, n int) int {
		calls.Add(1)
		return n
	})
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := p.Map(ctx, []int{1, 2, 3})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, got)
	assert.Zero(t, calls.Load())
}

func TestMap_CancelledInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{}, 10)
	p, err := New(2, func(ctx context.Context, n int) int {
		started <- struct{}{}
		<-ctx.Done()
		return n
	})
	require.NoError(t, err)
	defer p.Close()

	go func() {
		<-started
		cancel()
	}()

	got, err := p.Map(ctx, []int{1, 2, 3, 4, 5, 6})
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, len(got), 6)
}
