package builtin

import (
	"context"
	"testing"

	"github.com/d5/tengo/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/scripthost/internal/modules"
	"github.com/nfrund/scripthost/internal/pubsub"
)

type capturingPublisher struct {
	messages []pubsub.Message
}

func (p *capturingPublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func TestRegister_ModuleSet(t *testing.T) {
	reg := modules.NewRegistry()
	require.NoError(t, Register(reg, Dependencies{Publisher: &capturingPublisher{}}))

	assert.Equal(t, []string{"host.info", "events", "ids"}, reg.Names())
}

func TestHostInfo_DefaultsWithoutConfig(t *testing.T) {
	info := HostInfo(nil)

	assert.NotEmpty(t, info["platform"])
	assert.NotEmpty(t, info["arch"])
	assert.Equal(t, "", info["default_language"])
}

func TestEvents_PublishNamespacesGuestTopics(t *testing.T) {
	pub := &capturingPublisher{}

	value, err := Events(pub)(nil)
	require.NoError(t, err)

	capability, ok := value.(map[string]any)
	require.True(t, ok)
	publish, ok := capability["publish"].(tengo.CallableFunc)
	require.True(t, ok)

	result, err := publish(&tengo.String{Value: "orders"}, &tengo.String{Value: "created"})
	require.NoError(t, err)
	assert.Equal(t, tengo.TrueValue, result)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "guest.orders", pub.messages[0].Topic)
	assert.Equal(t, []byte("created"), pub.messages[0].Payload)

	_, err = publish(&tengo.String{Value: "only-topic"})
	assert.Error(t, err)
}

func TestEvents_FactoryFailsWithoutPublisher(t *testing.T) {
	_, err := Events(nil)(nil)
	assert.Error(t, err)
}

func TestIDs_GeneratesUUIDs(t *testing.T) {
	value, err := IDs()(nil)
	require.NoError(t, err)

	capability, ok := value.(map[string]any)
	require.True(t, ok)
	gen, ok := capability["uuid"].(tengo.CallableFunc)
	require.True(t, ok)

	first, err := gen()
	require.NoError(t, err)
	second, err := gen()
	require.NoError(t, err)

	s1 := first.(*tengo.String).Value
	s2 := second.(*tengo.String).Value
	assert.NotEqual(t, s1, s2)

	_, err = uuid.Parse(s1)
	assert.NoError(t, err)
}
