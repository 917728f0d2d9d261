package builtin

import (
	"context"
	"fmt"

	"github.com/d5/tengo/v2"

	"github.com/nfrund/scripthost/internal/modules"
	"github.com/nfrund/scripthost/internal/pubsub"
)

// GuestTopicPrefix namespaces topics published by guest code so they cannot
// collide with host lifecycle topics.
const GuestTopicPrefix = "guest."

// Events returns the deferred "events" capability: a publish function backed
// by the host's pub/sub bridge. The factory runs once per context on first
// guest reference.
func Events(pub pubsub.Publisher) modules.Factory {
	return func(r modules.Resolver) (any, error) {
		if pub == nil {
			return nil, fmt.Errorf("no publisher configured")
		}
		return map[string]any{
			"publish": tengo.CallableFunc(func(args ...tengo.Object) (tengo.Object, error) {
				if len(args) != 2 {
					return nil, tengo.ErrWrongNumArguments
				}
				topic, ok := tengo.ToString(args[0])
				if !ok {
					return nil, tengo.ErrInvalidArgumentType{Name: "topic", Expected: "string"}
				}
				payload, ok := tengo.ToString(args[1])
				if !ok {
					return nil, tengo.ErrInvalidArgumentType{Name: "payload", Expected: "string"}
				}
				err := pub.Publish(context.Background(), pubsub.Message{
					Topic:   GuestTopicPrefix + topic,
					Payload: []byte(payload),
				})
				if err != nil {
					return nil, err
				}
				return tengo.TrueValue, nil
			}),
		}, nil
	}
}
