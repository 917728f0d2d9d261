package host

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) (*Engine, *Context) {
	t.Helper()
	e, err := NewBuilder().
		WithLanguage(newFakeLanguage("fake")).
		WithDefaultLanguage("fake").
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { e.Dispose() })

	c, err := e.AcquireContext(context.Background())
	require.NoError(t, err)
	return e, c
}

func TestContext_EvaluateUsesDefaultLanguage(t *testing.T) {
	_, c := newTestContext(t)

	v, err := c.Evaluate(context.Background(), "", "greet")
	require.NoError(t, err)
	assert.Equal(t, "ok: greet", v)
}

func TestContext_EvaluateUnknownLanguage(t *testing.T) {
	_, c := newTestContext(t)

	_, err := c.Evaluate(context.Background(), "cobol", "x")
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrorTypeGuestExecution))
	assert.Contains(t, err.Error(), "cobol")
}

func TestContext_EvaluationErrorsAreWrapped(t *testing.T) {
	e, c := newTestContext(t)

	_, err := c.Evaluate(context.Background(), "", "error: guest broke")
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrorTypeGuestExecution))

	var hostErr *Error
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, e.ID(), hostErr.EngineID)
	assert.Equal(t, c.ID(), hostErr.ContextID)
}

func TestContext_EvalOutsideExecutorIsAffinityViolation(t *testing.T) {
	_, c := newTestContext(t)

	_, err := c.Eval(context.Background(), "", "x")
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrorTypeThreadAffinity))
}

func TestContext_EvalFromForeignExecutorIsAffinityViolation(t *testing.T) {
	e, err := NewBuilder().
		WithLanguage(newFakeLanguage("fake")).
		WithDefaultLanguage("fake").
		Build()
	require.NoError(t, err)
	defer e.Dispose()

	c1, err := e.AcquireContext(context.Background())
	require.NoError(t, err)
	c2, err := e.AcquireContext(context.Background())
	require.NoError(t, err)

	// A task running on c1's executor must not drive c2.
	_, err = c1.Submit(context.Background(), func(tctx context.Context) (any, error) {
		return c2.Eval(tctx, "", "x")
	})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrorTypeThreadAffinity))

	// Driving c1 from its own task is fine.
	v, err := c1.Submit(context.Background(), func(tctx context.Context) (any, error) {
		return c1.Eval(tctx, "", "x")
	})
	require.NoError(t, err)
	assert.Equal(t, "ok: x", v)
}

func TestContext_DisposeIsIdempotent(t *testing.T) {
	e, c := newTestContext(t)

	require.NoError(t, c.Dispose())
	require.NoError(t, c.Dispose())

	assert.Empty(t, e.ContextIDs())

	_, err := c.Evaluate(context.Background(), "", "x")
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrorTypeContextDisposed))

	_, err = c.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	assert.True(t, IsErrorType(err, ErrorTypeContextDisposed))
}

func TestContext_ConcurrentDisposeIsSafe(t *testing.T) {
	_, c := newTestContext(t)

	var wg sync.WaitGroup
	for n := 0; n < 5; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Dispose())
		}()
	}
	wg.Wait()
}

func TestContext_EvaluatorCreatedOncePerLanguage(t *testing.T) {
	fake := newFakeLanguage("fake")
	e, err := NewBuilder().WithLanguage(fake).WithDefaultLanguage("fake").Build()
	require.NoError(t, err)
	defer e.Dispose()

	c, err := e.AcquireContext(context.Background())
	require.NoError(t, err)
	defer c.Dispose()

	for n := 0; n < 3; n++ {
		_, err := c.Evaluate(context.Background(), "fake", "x")
		require.NoError(t, err)
	}
	assert.Len(t, c.evaluators, 1)
}
