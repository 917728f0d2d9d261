package lifecycle

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nfrund/scripthost/internal/pubsub"
)

// TopicPrefix is prepended to the event kind to form the pub/sub topic,
// e.g. "host.lifecycle.context.created".
const TopicPrefix = "host.lifecycle."

// notification is the wire form of a mirrored lifecycle event. The payload
// itself is not serialized; observers get identifiers and a timestamp.
type notification struct {
	Kind      string `json:"kind"`
	EngineID  string `json:"engine_id"`
	ContextID string `json:"context_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// MirrorTo returns a handler that republishes lifecycle events to the given
// publisher for asynchronous observers. Publish failures are logged and never
// fail the checkpoint, so the mirror can be attached to every kind safely.
func MirrorTo(pub pubsub.Publisher) Handler {
	return func(ev Event) error {
		payload, err := json.Marshal(notification{
			Kind:      string(ev.Kind),
			EngineID:  ev.EngineID,
			ContextID: ev.ContextID,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			slog.Error("Failed to encode lifecycle notification", "kind", ev.Kind, "error", err)
			return nil
		}

		msg := pubsub.Message{
			Topic:   TopicPrefix + string(ev.Kind),
			Origin:  ev.EngineID,
			Payload: payload,
		}
		if ev.ContextID != "" {
			msg.Origin = ev.ContextID
		}

		if err := pub.Publish(context.Background(), msg); err != nil {
			slog.Error("Failed to mirror lifecycle event", "kind", ev.Kind, "error", err)
		}
		return nil
	}
}

// Mirror attaches a MirrorTo handler to all four checkpoints.
func Mirror(bus *Bus, pub pubsub.Publisher) {
	h := MirrorTo(pub)
	for _, kind := range []Kind{EngineCreated, EngineInitialized, ContextCreated, ContextInitialized} {
		bus.On(kind, h)
	}
}
