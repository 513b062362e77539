package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversByType(t *testing.T) {
	bus := NewBus(gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Event, 1)
	require.NoError(t, bus.Subscribe(ctx, TypeTurnCompleted, func(ctx context.Context, e Event) {
		got <- e
	}))

	sid := uuid.New()
	sent := TurnCompleted(sid, uuid.New(), 4, true)
	require.NoError(t, bus.Publish(ctx, sent))

	select {
	case e := <-got:
		assert.Equal(t, TypeTurnCompleted, e.EventType())
		id, ok := SessionIDOf(e)
		assert.True(t, ok)
		assert.Equal(t, sid, id)
		assert.Equal(t, true, e.Payload()["simulated"])
		assert.True(t, sent.Timestamp().Equal(e.Timestamp()))
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(ctx context.Context, event Event) error {
	f.calls++
	return errors.New("offline")
}

func TestFanout_PublishesToAll(t *testing.T) {
	a, b := &failingPublisher{}, &failingPublisher{}
	err := Fanout{a, nil, b}.Publish(context.Background(), SessionEnded(uuid.New()))

	assert.Error(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}
