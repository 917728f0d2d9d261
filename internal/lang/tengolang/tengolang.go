package tengolang

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/spf13/afero"

	"github.com/nfrund/scripthost/internal/lang"
)

// LanguageID identifies the Tengo guest language.
const LanguageID lang.ID = "tengo"

// Language implements lang.Language for Tengo scripts.
type Language struct{}

// New creates the Tengo language plugin.
func New() *Language {
	return &Language{}
}

// ID returns the language identifier.
func (l *Language) ID() lang.ID {
	return LanguageID
}

// NewEvaluator creates the per-context execution state for Tengo.
func (l *Language) NewEvaluator(opts lang.Options) (lang.Evaluator, error) {
	limits := opts.Limits
	if limits.MaxExecutionTime <= 0 {
		limits = lang.DefaultSecurityLimits()
	}
	return &Evaluator{
		limits:  limits,
		lookup:  opts.Lookup,
		fs:      opts.FS,
		imports: buildModuleMap(limits.AllowedPackages),
	}, nil
}

// Evaluator executes Tengo source under the context's security limits.
type Evaluator struct {
	limits  lang.SecurityLimits
	lookup  func(name string) (any, error)
	fs      afero.Fs
	imports *tengo.ModuleMap
}

// Evaluate runs a Tengo script with host bindings injected. Execution is
// bounded by the configured timeout and memory limit; the script's "result"
// variable is returned as the evaluation value.
func (e *Evaluator) Evaluate(ctx context.Context, source string, globals map[string]any) (any, error) {
	startTime := time.Now()
	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)

	script := tengo.NewScript([]byte(source))
	script.SetImports(e.imports)

	for key, value := range globals {
		if err := script.Add(key, value); err != nil {
			return nil, fmt.Errorf("failed to set variable %s: %w", key, err)
		}
	}
	if err := e.addHostFunctions(script); err != nil {
		return nil, err
	}

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("tengo compilation failed: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, e.limits.MaxExecutionTime)
	defer cancel()

	// Execute in a goroutine so timeouts and panics can be handled.
	resultChan := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultChan <- fmt.Errorf("script panic: %v", r)
			}
		}()
		resultChan <- compiled.Run()
	}()

	select {
	case err := <-resultChan:
		if err != nil {
			return nil, err
		}
	case <-execCtx.Done():
		return nil, fmt.Errorf("script execution timed out after %s: %w", e.limits.MaxExecutionTime, execCtx.Err())
	}

	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)
	memoryUsed := int64(memAfter.Alloc - memBefore.Alloc)
	if memoryUsed > e.limits.MaxMemoryBytes {
		return nil, fmt.Errorf("script exceeded memory limit: %d bytes > %d bytes", memoryUsed, e.limits.MaxMemoryBytes)
	}

	slog.Debug("Tengo script executed",
		"execution_time", time.Since(startTime),
		"memory_used", memoryUsed,
	)

	return extractResult(compiled), nil
}

// Close releases per-context language state. Tengo holds none.
func (e *Evaluator) Close() error {
	return nil
}

// buildModuleMap creates the allowed stdlib imports for scripts.
func buildModuleMap(allowed []string) *tengo.ModuleMap {
	modules := tengo.NewModuleMap()
	for _, pkg := range allowed {
		if module, exists := stdlib.BuiltinModules[pkg]; exists {
			modules.AddBuiltinModule(pkg, module)
		}
	}
	return modules
}

// addHostFunctions injects the host capability surface into a script: "use"
// resolves a named module binding, "log" writes to the structured logger, and
// "read_file" reads from the mounted bundle filesystem.
func (e *Evaluator) addHostFunctions(script *tengo.Script) error {
	useFunc := &tengo.UserFunction{
		Name: "use",
		Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			name, ok := tengo.ToString(args[0])
			if !ok {
				return nil, tengo.ErrInvalidArgumentType{Name: "name", Expected: "string"}
			}
			if e.lookup == nil {
				return nil, fmt.Errorf("no capability lookup available")
			}
			value, err := e.lookup(name)
			if err != nil {
				return nil, err
			}
			return tengo.FromInterface(value)
		},
	}
	if err := script.Add("use", useFunc); err != nil {
		return fmt.Errorf("failed to add use function: %w", err)
	}

	logFunc := &tengo.UserFunction{
		Name: "log",
		Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			message, _ := tengo.ToString(args[0])
			slog.Info("Script log", "message", message, "source", "tengo_script")
			return tengo.UndefinedValue, nil
		},
	}
	if err := script.Add("log", logFunc); err != nil {
		return fmt.Errorf("failed to add log function: %w", err)
	}

	readFileFunc := &tengo.UserFunction{
		Name: "read_file",
		Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			path, ok := tengo.ToString(args[0])
			if !ok {
				return nil, tengo.ErrInvalidArgumentType{Name: "path", Expected: "string"}
			}
			if e.fs == nil {
				return nil, fmt.Errorf("no filesystem mounted")
			}
			data, err := afero.ReadFile(e.fs, path)
			if err != nil {
				return nil, err
			}
			return &tengo.String{Value: string(data)}, nil
		},
	}
	if err := script.Add("read_file", readFileFunc); err != nil {
		return fmt.Errorf("failed to add read_file function: %w", err)
	}

	return nil
}

// extractResult extracts the result from the executed script.
func extractResult(compiled *tengo.Compiled) any {
	if result := compiled.Get("result"); result != nil {
		return result.Value()
	}
	return nil
}
