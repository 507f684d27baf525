package handlers

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/realtime"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const streamTicketKey = "stream_ticket_id"

// RealtimeHandler serves ticket channels over websockets and authorizes Pusher-style clients.
type RealtimeHandler struct {
	hub          *realtime.Hub
	authorizer   *realtime.ChannelAuthorizer
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewRealtimeHandler constructs handler.
func NewRealtimeHandler(hub *realtime.Hub, authorizer *realtime.ChannelAuthorizer, writeTimeout time.Duration, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeHandler{hub: hub, authorizer: authorizer, writeTimeout: writeTimeout, logger: logger}
}

// Upgrade gates GET /tickets/:id/stream before the websocket handshake.
func (h *RealtimeHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return apperrors.FromHTTPStatus(fiber.StatusUpgradeRequired, "websocket upgrade required")
	}
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	ticketID := c.Params("id")
	if err := h.authorizer.AuthorizeTicket(c.UserContext(), user, ticketID); err != nil {
		return err
	}
	c.Locals(streamTicketKey, ticketID)
	return c.Next()
}

// Stream attaches an upgraded connection to the ticket channel.
func (h *RealtimeHandler) Stream(conn *websocket.Conn) {
	ticketID, _ := conn.Locals(streamTicketKey).(string)
	if ticketID == "" {
		_ = conn.Close()
		return
	}
	sub := h.hub.Subscribe(ticketID)
	defer h.hub.Unsubscribe(sub)

	h.logger.Debug("socket connected", zap.String("channel", sub.Channel), zap.String("socket_id", sub.SocketID))
	realtime.ServeSocket(conn, sub, h.writeTimeout, h.logger)
	h.logger.Debug("socket disconnected", zap.String("channel", sub.Channel), zap.String("socket_id", sub.SocketID))
}

// AuthorizeChannel POST /broadcasting/auth.
func (h *RealtimeHandler) AuthorizeChannel(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.ChannelAuthRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.ChannelName == "" {
		return apperrors.NewValidationError("The given data was invalid.", map[string]any{
			"channel_name": []string{"The channel name field is required."},
		})
	}
	if _, err := h.authorizer.AuthorizeChannel(c.UserContext(), user, req.ChannelName); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"channel": req.ChannelName, "socket_id": req.SocketID})
}
