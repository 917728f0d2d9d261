package host

import (
	"context"
	"fmt"
	"sync"
)

// Task is a unit of guest-visible work submitted to a context's executor.
// The context passed to the task carries the executor's affinity token; guest
// invocation APIs only accept contexts descending from it.
type Task func(ctx context.Context) (any, error)

type affinityKey struct{}

type result struct {
	value any
	err   error
}

type submission struct {
	ctx  context.Context
	task Task
	done chan result
}

// Executor is the thread-affined scheduling primitive serializing all work
// for one execution context. A single worker goroutine processes submitted
// tasks strictly in submission order; no two tasks for the same context ever
// run concurrently.
type Executor struct {
	contextID string
	tasks     chan *submission
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newExecutor(contextID string) *Executor {
	e := &Executor{
		contextID: contextID,
		tasks:     make(chan *submission),
		stop:      make(chan struct{}),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

func (e *Executor) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stop:
			return
		case sub := <-e.tasks:
			e.process(sub)
		}
	}
}

func (e *Executor) process(sub *submission) {
	defer func() {
		if r := recover(); r != nil {
			sub.done <- result{err: NewError(
				ErrorTypeGuestExecution,
				"",
				e.contextID,
				fmt.Sprintf("guest task panic: %v", r),
				nil,
			)}
		}
	}()

	// Cooperative cancellation: a task whose context was cancelled before
	// its turn still occupies its submission slot but does not run.
	if err := sub.ctx.Err(); err != nil {
		sub.done <- result{err: NewError(
			ErrorTypeGuestExecution,
			"",
			e.contextID,
			"task cancelled before execution",
			err,
		)}
		return
	}

	tctx := context.WithValue(sub.ctx, affinityKey{}, e)
	value, err := sub.task(tctx)
	sub.done <- result{value: value, err: err}
}

// Submit enqueues a task and blocks until its result is available. Tasks are
// executed sequentially in submission order. Submitting to a closed executor
// fails with a context-disposed error.
func (e *Executor) Submit(ctx context.Context, task Task) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sub := &submission{ctx: ctx, task: task, done: make(chan result, 1)}

	select {
	case e.tasks <- sub:
	case <-e.stop:
		return nil, NewError(ErrorTypeContextDisposed, "", e.contextID, "executor is closed", nil)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r := <-sub.done
	return r.value, r.err
}

// owns reports whether ctx descends from a task currently scheduled by this
// executor. This is the thread-affinity contract: a context handle can only
// be operated on from its owning executor.
func (e *Executor) owns(ctx context.Context) bool {
	v, _ := ctx.Value(affinityKey{}).(*Executor)
	return v == e
}

// Close stops the worker after any in-flight task completes. Pending
// submissions that have not been accepted are rejected. Idempotent and safe
// to call concurrently with running tasks.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		close(e.stop)
	})
	e.wg.Wait()
}
