package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Publisher is implemented by every event sink
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

const metadataOccurredAt = "occurred_at"

func occurredAt(msg *message.Message) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, msg.Metadata.Get(metadataOccurredAt)); err == nil {
		return t
	}
	return time.Now().UTC()
}

// Bus is the in-process event bus. Topics are event types.
type Bus struct {
	pubSub *gochannel.GoChannel
}

func NewBus(pubSub *gochannel.GoChannel) *Bus {
	return &Bus{pubSub: pubSub}
}

func (b *Bus) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(metadataOccurredAt, event.Timestamp().UTC().Format(time.RFC3339Nano))
	msg.SetContext(ctx)
	return b.pubSub.Publish(event.EventType(), msg)
}

// Subscribe delivers decoded events of one type until ctx is done.
// Messages are acked after handle returns.
func (b *Bus) Subscribe(ctx context.Context, eventType string, handle func(ctx context.Context, event Event)) error {
	messages, err := b.pubSub.Subscribe(ctx, eventType)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var payload map[string]interface{}
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				msg.Ack()
				continue
			}
			handle(ctx, BaseEvent{Type: eventType, Data: payload, OccurredAt: occurredAt(msg)})
			msg.Ack()
		}
	}()
	return nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}

// Fanout publishes to every sink and returns the first error
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var first error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
