package host

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/nfrund/scripthost/internal/lang"
	"github.com/nfrund/scripthost/internal/modules"
)

// Context is a single guest sandbox. It holds a shared, non-owning reference
// to its engine, a dedicated guest executor, and a mutable binding table
// populated during initialization. All guest-visible operations are funneled
// through the bound executor; a context is never served by more than one
// worker.
type Context struct {
	id       string
	engine   *Engine
	exec     *Executor
	bindings *modules.Bindings
	fs       afero.Fs

	// evaluators are created lazily and touched only on the executor
	// worker, except during disposal after the worker has stopped.
	evaluators map[lang.ID]lang.Evaluator

	disposed    atomic.Bool
	disposeOnce sync.Once
}

func newContext(engine *Engine) *Context {
	id := uuid.NewString()
	return &Context{
		id:         id,
		engine:     engine,
		exec:       newExecutor(id),
		bindings:   modules.NewBindings(),
		fs:         afero.NewMemMapFs(),
		evaluators: make(map[lang.ID]lang.Evaluator),
	}
}

// ID returns the context's unique identity.
func (c *Context) ID() string {
	return c.id
}

// Engine returns the owning engine.
func (c *Context) Engine() *Engine {
	return c.engine
}

// Bindings returns the context's binding table.
func (c *Context) Bindings() *modules.Bindings {
	return c.bindings
}

// FS returns the context's mounted resource filesystem.
func (c *Context) FS() afero.Fs {
	return c.fs
}

// Submit schedules a task on the context's executor and blocks for its
// result. Tasks for one context never overlap and run in submission order.
func (c *Context) Submit(ctx context.Context, task Task) (any, error) {
	if c.disposed.Load() {
		return nil, NewError(ErrorTypeContextDisposed, c.engine.id, c.id, "context is disposed", nil)
	}
	return c.exec.Submit(ctx, task)
}

// Evaluate runs guest source in the given language through the executor. It
// is safe to call from any goroutine; the work itself runs on the context's
// worker. An empty language selects the engine's default.
func (c *Context) Evaluate(ctx context.Context, language lang.ID, source string) (any, error) {
	return c.Submit(ctx, func(tctx context.Context) (any, error) {
		return c.Eval(tctx, language, source)
	})
}

// Eval runs guest source directly and must be called from a task currently
// running on this context's executor. Calling it with a foreign context is a
// programming error reported as a thread-affinity violation.
func (c *Context) Eval(tctx context.Context, language lang.ID, source string) (any, error) {
	if !c.exec.owns(tctx) {
		return nil, NewError(
			ErrorTypeThreadAffinity,
			c.engine.id,
			c.id,
			"guest invocation from outside the bound executor",
			nil,
		)
	}
	if c.disposed.Load() {
		return nil, NewError(ErrorTypeContextDisposed, c.engine.id, c.id, "context is disposed", nil)
	}

	if language == "" {
		language = c.engine.cfg.DefaultLanguage
	}

	ev, err := c.evaluator(language)
	if err != nil {
		return nil, err
	}

	value, err := ev.Evaluate(tctx, source, nil)
	if err != nil {
		return nil, NewError(ErrorTypeGuestExecution, c.engine.id, c.id, "guest execution failed", err)
	}
	return value, nil
}

// evaluator returns the per-context evaluator for a language, creating it on
// first use. Only ever called on the executor worker.
func (c *Context) evaluator(id lang.ID) (lang.Evaluator, error) {
	if ev, ok := c.evaluators[id]; ok {
		return ev, nil
	}

	l, ok := c.engine.language(id)
	if !ok {
		return nil, NewError(
			ErrorTypeGuestExecution,
			c.engine.id,
			c.id,
			"language not installed: "+string(id),
			nil,
		)
	}

	ev, err := l.NewEvaluator(lang.Options{
		Limits: c.engine.cfg.Limits,
		Lookup: c.bindings.Resolve,
		FS:     c.fs,
	})
	if err != nil {
		return nil, NewError(ErrorTypeGuestExecution, c.engine.id, c.id, "failed to create evaluator", err)
	}

	c.evaluators[id] = ev
	return ev, nil
}

// Dispose releases the context: the executor finishes any in-flight task and
// stops, evaluators are closed, and further execution attempts fail with a
// context-disposed error. Dispose is idempotent and safe to call concurrently
// with running tasks.
func (c *Context) Dispose() error {
	c.disposeOnce.Do(func() {
		c.exec.Close()
		c.disposed.Store(true)

		// The worker is stopped; evaluator state is safe to touch here.
		for id, ev := range c.evaluators {
			if err := ev.Close(); err != nil {
				slog.Warn("Failed to close evaluator", "context", c.id, "language", id, "error", err)
			}
		}
		c.engine.forget(c)

		slog.Debug("Disposed context", "context", c.id, "engine", c.engine.id)
	})
	return nil
}
