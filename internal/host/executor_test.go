package host

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_RunsTasksAndReturnsResults(t *testing.T) {
	e := newExecutor("ctx-1")
	defer e.Close()

	v, err := e.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestExecutor_TasksNeverOverlap(t *testing.T) {
	e := newExecutor("ctx-1")
	defer e.Close()

	var inFlight, maxInFlight, total atomic.Int32
	var wg sync.WaitGroup
	for n := 0; n < 10; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := 0; m < 10; m++ {
				_, err := e.Submit(context.Background(), func(ctx context.Context) (any, error) {
					n := inFlight.Add(1)
					if n > maxInFlight.Load() {
						maxInFlight.Store(n)
					}
					time.Sleep(time.Millisecond)
					inFlight.Add(-1)
					total.Add(1)
					return nil, nil
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(100), total.Load())
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestExecutor_SubmissionOrderFromOneCaller(t *testing.T) {
	e := newExecutor("ctx-1")
	defer e.Close()

	var order []int
	for i := 0; i < 20; i++ {
		i := i
		_, err := e.Submit(context.Background(), func(ctx context.Context) (any, error) {
			order = append(order, i)
			return nil, nil
		})
		require.NoError(t, err)
	}

	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestExecutor_CancelledTaskDoesNotRun(t *testing.T) {
	e := newExecutor("ctx-1")
	defer e.Close()

	// Block the worker so the cancelled submission is accepted before its turn.
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = e.Submit(context.Background(), func(ctx context.Context) (any, error) {
			<-release
			return nil, nil
		})
	}()

	cctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	wg.Add(1)
	var submitErr error
	go func() {
		defer wg.Done()
		_, submitErr = e.Submit(cctx, func(ctx context.Context) (any, error) {
			ran.Store(true)
			return nil, nil
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	close(release)
	wg.Wait()

	require.Error(t, submitErr)
	assert.False(t, ran.Load())
}

func TestExecutor_PanicBecomesGuestExecutionError(t *testing.T) {
	e := newExecutor("ctx-1")
	defer e.Close()

	_, err := e.Submit(context.Background(), func(ctx context.Context) (any, error) {
		panic("boom")
	})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrorTypeGuestExecution))
	assert.Contains(t, err.Error(), "boom")

	// The worker survives the panic.
	v, err := e.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return "alive", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "alive", v)
}

func TestExecutor_CloseWaitsForInFlightTask(t *testing.T) {
	e := newExecutor("ctx-1")

	started := make(chan struct{})
	var finished atomic.Bool
	go func() {
		_, _ = e.Submit(context.Background(), func(ctx context.Context) (any, error) {
			close(started)
			time.Sleep(20 * time.Millisecond)
			finished.Store(true)
			return nil, nil
		})
	}()

	<-started
	e.Close()
	assert.True(t, finished.Load())

	// Closing again is harmless.
	e.Close()
}

func TestExecutor_SubmitAfterClose(t *testing.T) {
	e := newExecutor("ctx-1")
	e.Close()

	_, err := e.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrorTypeContextDisposed))
}

func TestExecutor_AffinityToken(t *testing.T) {
	e := newExecutor("ctx-1")
	defer e.Close()
	other := newExecutor("ctx-2")
	defer other.Close()

	_, err := e.Submit(context.Background(), func(tctx context.Context) (any, error) {
		assert.True(t, e.owns(tctx))
		assert.False(t, other.owns(tctx))
		return nil, nil
	})
	require.NoError(t, err)

	assert.False(t, e.owns(context.Background()))
}
