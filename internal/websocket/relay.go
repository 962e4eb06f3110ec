package websocket

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// Relay forwards every event on messages to the clients following topic,
// wrapped as a Message with the given action. It returns when ctx is done
// or the stream closes.
func Relay(ctx context.Context, hub *Hub, messages <-chan *message.Message, topic, action string) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if !json.Valid(msg.Payload) {
				log.Warn().Str("message_id", msg.UUID).Msg("Dropping non-JSON event")
				msg.Ack()
				continue
			}
			hub.BroadcastTo(topic, Encode(action, json.RawMessage(msg.Payload)))
			msg.Ack()
		}
	}
}
