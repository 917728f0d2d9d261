package plugin

import (
	"errors"
	"testing"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/scripthost/internal/modules"
	"github.com/nfrund/scripthost/internal/pubsub"
)

type fakeEngineScope struct {
	id      string
	modules *modules.Registry
}

func (s *fakeEngineScope) EngineID() string           { return s.id }
func (s *fakeEngineScope) Services() do.Injector      { return nil }
func (s *fakeEngineScope) Modules() *modules.Registry { return s.modules }

type fakeContextScope struct {
	fakeEngineScope
	contextID string
	bindings  *modules.Bindings
}

func (s *fakeContextScope) ContextID() string { return s.contextID }

func (s *fakeContextScope) Bind(name string, value any) error {
	return s.bindings.Bind(name, value)
}

func (s *fakeContextScope) BindDeferred(name string, factory modules.Factory) error {
	return s.bindings.BindDeferred(name, factory)
}

func (s *fakeContextScope) Publisher() pubsub.Publisher { return nil }

func newFakeContextScope() *fakeContextScope {
	return &fakeContextScope{
		fakeEngineScope: fakeEngineScope{id: "engine-1", modules: modules.NewRegistry()},
		contextID:       "context-1",
		bindings:        modules.NewBindings(),
	}
}

type telemetryConfig struct {
	Endpoint string
}

func TestRegistry_InstallContextInRegistrationOrder(t *testing.T) {
	reg := NewRegistry()

	var order []string
	install := func(name string) ContextInstall[struct{}] {
		return func(scope ContextScope, cfg struct{}) error {
			order = append(order, name)
			return nil
		}
	}

	require.NoError(t, RegisterContext(reg, Key[struct{}]("first"), struct{}{}, install("first")))
	require.NoError(t, RegisterContext(reg, Key[struct{}]("second"), struct{}{}, install("second")))
	require.NoError(t, RegisterContext(reg, Key[struct{}]("third"), struct{}{}, install("third")))

	require.NoError(t, reg.InstallContext(newFakeContextScope()))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestRegistry_DuplicateKeyRejected(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, RegisterEngine(reg, Key[telemetryConfig]("telemetry"),
		telemetryConfig{Endpoint: "a"},
		func(scope EngineScope, cfg telemetryConfig) error { return nil }))

	// Same key, different configuration.
	err := RegisterEngine(reg, Key[telemetryConfig]("telemetry"),
		telemetryConfig{Endpoint: "b"},
		func(scope EngineScope, cfg telemetryConfig) error { return nil })

	var dup *DuplicateKeyError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "telemetry", dup.Key)
}

func TestRegistry_IdenticalReRegistrationIsNoOp(t *testing.T) {
	reg := NewRegistry()

	install := func(scope EngineScope, cfg telemetryConfig) error { return nil }
	cfg := telemetryConfig{Endpoint: "a"}

	require.NoError(t, RegisterEngine(reg, Key[telemetryConfig]("telemetry"), cfg, install))
	require.NoError(t, RegisterEngine(reg, Key[telemetryConfig]("telemetry"), cfg, install))

	assert.Equal(t, []string{"telemetry"}, reg.Keys())
}

func TestRegistry_SameNameDifferentConfigTypesAreDistinctKeys(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, RegisterEngine(reg, Key[telemetryConfig]("ext"),
		telemetryConfig{},
		func(scope EngineScope, cfg telemetryConfig) error { return nil }))
	require.NoError(t, RegisterEngine(reg, Key[int]("ext"), 7,
		func(scope EngineScope, cfg int) error { return nil }))

	assert.Equal(t, []string{"ext", "ext"}, reg.Keys())
}

func TestRegistry_InstallFailureAbortsAndNamesKey(t *testing.T) {
	reg := NewRegistry()

	var ran []string
	require.NoError(t, RegisterContext(reg, Key[struct{}]("ok"), struct{}{},
		func(scope ContextScope, cfg struct{}) error {
			ran = append(ran, "ok")
			return scope.Bind("ok.capability", 1)
		}))
	boom := errors.New("bad wiring")
	require.NoError(t, RegisterContext(reg, Key[struct{}]("failing"), struct{}{},
		func(scope ContextScope, cfg struct{}) error {
			ran = append(ran, "failing")
			return boom
		}))
	require.NoError(t, RegisterContext(reg, Key[struct{}]("never"), struct{}{},
		func(scope ContextScope, cfg struct{}) error {
			ran = append(ran, "never")
			return nil
		}))

	scope := newFakeContextScope()
	err := reg.InstallContext(scope)

	var ie *InstallError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "failing", ie.Key)
	assert.ErrorIs(t, err, boom)

	// The third plugin never ran, and earlier bindings were not rolled back.
	assert.Equal(t, []string{"ok", "failing"}, ran)
	assert.True(t, scope.bindings.Has("ok.capability"))
}

func TestRegistry_ConfigSnapshotPassedToInstall(t *testing.T) {
	reg := NewRegistry()

	var seen telemetryConfig
	require.NoError(t, RegisterContext(reg, Key[telemetryConfig]("telemetry"),
		telemetryConfig{Endpoint: "collector:4317"},
		func(scope ContextScope, cfg telemetryConfig) error {
			seen = cfg
			return nil
		}))

	require.NoError(t, reg.InstallContext(newFakeContextScope()))
	assert.Equal(t, "collector:4317", seen.Endpoint)
}

func TestRegistry_EngineAndContextScopesIndependent(t *testing.T) {
	reg := NewRegistry()

	var engineRuns, contextRuns int
	require.NoError(t, RegisterEngine(reg, Key[struct{}]("engine-only"), struct{}{},
		func(scope EngineScope, cfg struct{}) error {
			engineRuns++
			return nil
		}))
	require.NoError(t, RegisterContext(reg, Key[struct{}]("context-only"), struct{}{},
		func(scope ContextScope, cfg struct{}) error {
			contextRuns++
			return nil
		}))

	scope := newFakeContextScope()
	require.NoError(t, reg.InstallEngine(&scope.fakeEngineScope))
	require.NoError(t, reg.InstallContext(scope))
	require.NoError(t, reg.InstallContext(scope))

	assert.Equal(t, 1, engineRuns)
	assert.Equal(t, 2, contextRuns)
}
