package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"narrative-engine-be/internal/dto"
	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	hubModule      = "Hub"
	clusterChannel = "narrative_session_events"

	MessageTurnUpdate = "turn_update"
)

// Hub pushes turn progress to every socket watching a session. With redis
// configured, updates are relayed to sockets held by other instances.
type Hub struct {
	// SessionID -> sockets watching it
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run returns

	mu sync.RWMutex

	rdb        *redis.Client
	instanceID string

	logger logger.ILogger
}

type clusterEnvelope struct {
	Origin          string          `json:"origin"`
	TargetSessionID string          `json:"target_session_id"`
	Message         json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info(hubModule, "Client registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.SessionID]) == 0 {
					delete(h.clients, client.SessionID)
					h.logger.Info(hubModule, "Session has no watchers", map[string]interface{}{"session_id": client.SessionID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// TurnUpdated forwards every persisted turn change to the session's sockets
func (h *Hub) TurnUpdated(ctx context.Context, turn *entity.Turn) {
	data, err := json.Marshal(map[string]interface{}{
		"type": MessageTurnUpdate,
		"data": dto.NewTurnResponse(turn),
	})
	if err != nil {
		h.logger.Error(hubModule, "Failed to encode turn update", map[string]interface{}{"error": err.Error()})
		return
	}
	h.Send(ctx, turn.SessionId, data)
}

// Send delivers to local sockets and relays to the other instances
func (h *Hub) Send(ctx context.Context, sessionID uuid.UUID, data []byte) {
	h.deliver(sessionID, data)

	if h.rdb == nil {
		return
	}
	payload, err := json.Marshal(clusterEnvelope{
		Origin:          h.instanceID,
		TargetSessionID: sessionID.String(),
		Message:         data,
	})
	if err != nil {
		return
	}
	if err := h.rdb.Publish(ctx, clusterChannel, payload).Err(); err != nil {
		h.logger.Warn(hubModule, "Redis relay failed", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Hub) deliver(sessionID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[sessionID] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn(hubModule, "Client send buffer full, dropping update", map[string]interface{}{"session_id": sessionID})
		}
	}
}

// attach and detach give up once the hub has stopped
func (h *Hub) attach(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) ClientCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	h.relay(ctx, pubsub.Channel())
}

// relay delivers messages from other instances until ctx is done
func (h *Hub) relay(ctx context.Context, messages <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			h.handleRelayed(msg.Payload)
		}
	}
}

func (h *Hub) handleRelayed(raw string) {
	var payload clusterEnvelope
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		h.logger.Warn(hubModule, "Redis message parse error", map[string]interface{}{"error": err.Error()})
		return
	}
	if payload.Origin == h.instanceID {
		return
	}
	sessionID, err := uuid.Parse(payload.TargetSessionID)
	if err != nil {
		return
	}
	h.deliver(sessionID, payload.Message)
}
