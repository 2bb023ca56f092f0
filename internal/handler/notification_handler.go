package handler

import (
	"net/http"

	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/propline/dealdesk-backend/internal/middleware"
	"github.com/propline/dealdesk-backend/internal/notify"
	"github.com/rs/zerolog/log"
)

// NotificationHandler upgrades authenticated requests to websocket
// notification streams.
type NotificationHandler struct {
	hub            *notify.Hub
	allowedOrigins map[string]bool
	upgrader       ws.Upgrader
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(hub *notify.Hub, allowedOrigins []string) *NotificationHandler {
	originMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		originMap[origin] = true
	}

	h := &NotificationHandler{
		hub:            hub,
		allowedOrigins: originMap,
	}
	h.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *NotificationHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Same-origin and non-browser clients send no Origin header
		return true
	}
	if h.allowedOrigins[origin] {
		return true
	}
	log.Warn().Str("origin", origin).Msg("Notification stream rejected: origin not allowed")
	return false
}

// Stream handles GET /api/v1/notifications/stream. The route runs behind the
// auth middleware, so the principal is already on the context.
func (h *NotificationHandler) Stream(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Error().Err(err).Msg("Websocket upgrade failed")
		return err
	}

	client := notify.NewClient(conn, principal, h.hub)
	h.hub.Register(client)

	log.Info().
		Str("user_id", principal.UserID.String()).
		Str("role", string(principal.Role)).
		Str("client_id", client.ID()).
		Msg("Notification stream connected")

	go client.WritePump()
	go client.ReadPump()

	return nil
}
