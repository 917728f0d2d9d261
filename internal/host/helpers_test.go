package host

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/nfrund/scripthost/internal/lang"
)

// fakeLanguage is a minimal guest language for exercising the host without a
// real interpreter. Evaluators echo their source, with a few directive
// prefixes for driving specific behavior:
//
//	"error: msg"     evaluation fails with msg
//	"lookup: name"   resolves a capability through the binding table
//	"read: path"     reads a file from the mounted context filesystem
//	"panic: msg"     panics
type fakeLanguage struct {
	id lang.ID

	mu      sync.Mutex
	sources []string
}

func newFakeLanguage(id lang.ID) *fakeLanguage {
	return &fakeLanguage{id: id}
}

func (l *fakeLanguage) ID() lang.ID {
	return l.id
}

func (l *fakeLanguage) NewEvaluator(opts lang.Options) (lang.Evaluator, error) {
	return &fakeEvaluator{lang: l, opts: opts}, nil
}

// Sources returns every source string evaluated so far, in order.
func (l *fakeLanguage) Sources() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.sources))
	copy(out, l.sources)
	return out
}

type fakeEvaluator struct {
	lang   *fakeLanguage
	opts   lang.Options
	closed bool
}

func (e *fakeEvaluator) Evaluate(ctx context.Context, source string, globals map[string]any) (any, error) {
	e.lang.mu.Lock()
	e.lang.sources = append(e.lang.sources, source)
	e.lang.mu.Unlock()

	switch {
	case strings.HasPrefix(source, "error:"):
		return nil, fmt.Errorf("%s", strings.TrimSpace(strings.TrimPrefix(source, "error:")))
	case strings.HasPrefix(source, "lookup:"):
		name := strings.TrimSpace(strings.TrimPrefix(source, "lookup:"))
		if e.opts.Lookup == nil {
			return nil, fmt.Errorf("no lookup wired")
		}
		return e.opts.Lookup(name)
	case strings.HasPrefix(source, "read:"):
		path := strings.TrimSpace(strings.TrimPrefix(source, "read:"))
		data, err := afero.ReadFile(e.opts.FS, path)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case strings.HasPrefix(source, "panic:"):
		panic(strings.TrimSpace(strings.TrimPrefix(source, "panic:")))
	}
	return "ok: " + source, nil
}

func (e *fakeEvaluator) Close() error {
	e.closed = true
	return nil
}
