package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := NewHub(nil, logger.NewNopLogger())
	go h.Run(ctx)
	return h
}

func attach(t *testing.T, h *Hub, sessionID uuid.UUID) *Client {
	t.Helper()
	c := &Client{Hub: h, SessionID: sessionID, Send: make(chan []byte, 4)}
	h.register <- c
	require.Eventually(t, func() bool { return h.ClientCount(sessionID) > 0 }, time.Second, 5*time.Millisecond)
	return c
}

func TestHub_TurnUpdateReachesSessionWatchers(t *testing.T) {
	h := runHub(t)
	sessionID := uuid.New()
	watcher := attach(t, h, sessionID)
	other := attach(t, h, uuid.New())

	turn := &entity.Turn{Id: uuid.New(), SessionId: sessionID, TurnNumber: 3, Status: entity.TurnStatusProcessing}
	h.TurnUpdated(context.Background(), turn)

	select {
	case raw := <-watcher.Send:
		var msg struct {
			Type string `json:"type"`
			Data struct {
				TurnId     uuid.UUID `json:"turnId"`
				TurnNumber int       `json:"turnNumber"`
				Status     string    `json:"status"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, MessageTurnUpdate, msg.Type)
		assert.Equal(t, turn.Id, msg.Data.TurnId)
		assert.Equal(t, 3, msg.Data.TurnNumber)
		assert.Equal(t, "processing", msg.Data.Status)
	case <-time.After(time.Second):
		t.Fatal("watcher got no update")
	}

	assert.Empty(t, other.Send)
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	h := runHub(t)
	sessionID := uuid.New()
	c := attach(t, h, sessionID)

	for i := 0; i < cap(c.Send)+2; i++ {
		h.Send(context.Background(), sessionID, []byte(`{}`))
	}
	assert.Len(t, c.Send, cap(c.Send))
}

func TestHub_UnregisterClosesSendChannel(t *testing.T) {
	h := runHub(t)
	sessionID := uuid.New()
	c := attach(t, h, sessionID)

	h.unregister <- c
	require.Eventually(t, func() bool { return h.ClientCount(sessionID) == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-c.Send
	assert.False(t, open)
}

func TestHub_StoppedHubRefusesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(nil, logger.NewNopLogger())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	c := &Client{Hub: h, SessionID: uuid.New(), Send: make(chan []byte, 1)}
	assert.False(t, h.attach(c))
	h.detach(c)
}

func relayed(t *testing.T, origin string, sessionID uuid.UUID, body string) *redis.Message {
	t.Helper()
	raw, err := json.Marshal(clusterEnvelope{
		Origin:          origin,
		TargetSessionID: sessionID.String(),
		Message:         json.RawMessage(body),
	})
	require.NoError(t, err)
	return &redis.Message{Channel: clusterChannel, Payload: string(raw)}
}

func TestHub_RelayDeliversForeignMessagesOnly(t *testing.T) {
	h := runHub(t)
	sessionID := uuid.New()
	watcher := attach(t, h, sessionID)

	messages := make(chan *redis.Message, 3)
	messages <- relayed(t, h.instanceID, sessionID, `{"from":"self"}`)
	messages <- &redis.Message{Channel: clusterChannel, Payload: "not json"}
	messages <- relayed(t, "other-node", sessionID, `{"from":"peer"}`)
	close(messages)

	h.relay(context.Background(), messages)

	select {
	case raw := <-watcher.Send:
		assert.JSONEq(t, `{"from":"peer"}`, string(raw))
	case <-time.After(time.Second):
		t.Fatal("watcher got no relayed message")
	}
	assert.Empty(t, watcher.Send)
}

func TestHub_RelayStopsOnCancel(t *testing.T) {
	h := NewHub(nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		h.relay(ctx, make(chan *redis.Message))
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("relay kept running after cancel")
	}
}
