package processor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credprobe/src/attempt"
	"credprobe/src/model"
	"credprobe/src/pool"
)

func TestNewDispatcher_InvalidConcurrency(t *testing.T) {
	_, err := NewDispatcher(newStub(), 0, nil)
	require.ErrorIs(t, err, pool.ErrInvalidSize)
}

func TestRunBatch_OneOutcomePerCandidate(t *testing.T) {
	stub := newStub("b")
	d, err := NewDispatcher(stub, 3, nil)
	require.NoError(t, err)
	defer d.Close()

	got, err := d.RunBatch(context.Background(), testAddress, testUser, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.AttemptOutcome{
		{User: "admin", Password: "a"},
		{User: "admin", Password: "b", Succeeded: true},
		{User: "admin", Password: "c"},
	}, got)
	assert.Equal(t, []string{"a", "b", "c"}, stub.Tested())
}

func TestRunBatch_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	exec := attempt.Func(func(_ context.Context, _, user, password string) model.AttemptOutcome {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return model.AttemptOutcome{User: user, Password: password}
	})

	d, err := NewDispatcher(exec, 2, nil)
	require.NoError(t, err)
	defer d.Close()

	for i := 0; i < 3; i++ {
		got, err := d.RunBatch(context.Background(), testAddress, testUser, []string{"a", "b"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunBatch_AttemptEventsTagged(t *testing.T) {
	events := &recorder{}
	d, err := NewDispatcher(newStub(), 2, events)
	require.NoError(t, err)
	defer d.Close()
	d.SetRunID("run-1")

	_, err = d.RunBatch(context.Background(), testAddress, testUser, []string{"a", "b"})
	require.NoError(t, err)

	attempts := events.kinds(model.EventAttempt)
	require.Len(t, attempts, 2)
	for _, ev := range attempts {
		assert.Equal(t, "run-1", ev.RunID)
		require.NotNil(t, ev.Outcome)
	}
}

func TestRunBatch_PanicIsPoolFailure(t *testing.T) {
	stub := newStub()
	stub.panicOn = "x"
	d, err := NewDispatcher(stub, 2, nil)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.RunBatch(context.Background(), testAddress, testUser, []string{"x", "y"})
	require.ErrorIs(t, err, pool.ErrPoolFailure)
}

func TestRunBatch_AfterClose(t *testing.T) {
	d, err := NewDispatcher(newStub(), 2, nil)
	require.NoError(t, err)
	d.Close()

	_, err = d.RunBatch(context.Background(), testAddress, testUser, []string{"a"})
	require.ErrorIs(t, err, pool.ErrClosed)
}

func TestRunBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := newStub()
	d, err := NewDispatcher(stub, 2, nil)
	require.NoError(t, err)
	defer d.Close()

	got, err := d.RunBatch(ctx, testAddress, testUser, []string{"a", "b"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, got)
	assert.Empty(t, stub.Tested())
}

func TestObservers_FanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	var calls int
	obs := Observers{a, nil, b, ObserverFunc(func(model.Event) { calls++ })}

	obs.Observe(model.Event{Kind: model.EventProgress})
	assert.Len(t, a.kinds(model.EventProgress), 1)
	assert.Len(t, b.kinds(model.EventProgress), 1)
	assert.Equal(t, 1, calls)
}
