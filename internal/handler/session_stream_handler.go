package handler

import (
	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/internal/pkg/serverutils"
	"narrative-engine-be/internal/service"
	internalWS "narrative-engine-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const streamModule = "SessionStreamHandler"

// SessionStreamHandler upgrades clients to a websocket that receives every
// turn update of one session.
type SessionStreamHandler struct {
	sessions service.ISessionService
	hub      *internalWS.Hub
	auth     fiber.Handler
	logger   logger.ILogger
}

func NewSessionStreamHandler(sessions service.ISessionService, hub *internalWS.Hub, auth fiber.Handler, log logger.ILogger) *SessionStreamHandler {
	return &SessionStreamHandler{
		sessions: sessions,
		hub:      hub,
		auth:     auth,
		logger:   log,
	}
}

func (h *SessionStreamHandler) RegisterRoutes(r fiber.Router) {
	g := r.Group("/ws")
	g.Use(h.tokenFromQuery, h.auth)
	g.Get("/session/:sessionId", h.ServeWs)
}

// Browsers cannot set headers on a websocket handshake, so ?token= is
// accepted as the bearer token.
func (h *SessionStreamHandler) tokenFromQuery(c *fiber.Ctx) error {
	if token := c.Query("token"); token != "" && c.Get(fiber.HeaderAuthorization) == "" {
		c.Request().Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return c.Next()
}

func (h *SessionStreamHandler) ServeWs(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid session id")
	}
	// Only live sessions can be watched
	if _, err := h.sessions.Resolve(c.UserContext(), sessionID); err != nil {
		return err
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	playerID := serverutils.PlayerID(c)
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info(streamModule, "Starting WebSocket session", map[string]interface{}{
			"session_id": sessionID,
			"player_id":  playerID,
		})
		internalWS.ServeWs(h.hub, conn, sessionID)
		h.logger.Info(streamModule, "WebSocket session ended", map[string]interface{}{"session_id": sessionID})
	})(c)
}
