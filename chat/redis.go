package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

type busMessage struct {
	Room    string          `json:"room"`
	Except  string          `json:"except,omitempty"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBus fans events out through Redis pub/sub so that every API instance
// delivers them to its own sockets.
type RedisBus struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     *logrus.Entry
}

func NewRedisBus(client *redis.Client, channel string, hub *Hub, log *logrus.Entry) *RedisBus {
	return &RedisBus{client: client, channel: channel, hub: hub, log: log}
}

func (b *RedisBus) Emit(ctx context.Context, room, event string, data interface{}) error {
	return b.EmitExcept(ctx, room, "", event, data)
}

func (b *RedisBus) EmitExcept(ctx context.Context, room, exceptConn, event string, data interface{}) error {
	payload, err := encode(event, data)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(busMessage{Room: room, Except: exceptConn, Event: event, Payload: payload})
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// Run delivers bus messages to the local hub until ctx is cancelled.
func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.log.WithField("channel", b.channel).Info("subscribed to event bus")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg busMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.log.WithError(err).Warn("malformed bus message")
				continue
			}
			b.hub.Deliver(msg.Room, msg.Except, msg.Event, msg.Payload)
		}
	}
}
