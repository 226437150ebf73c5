package websocket

import (
	"context"
	"net/http"
	"strings"

	"campus-relay/internal/commands"
	"campus-relay/internal/transport/httpdto"
	"campus-relay/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Authenticator resolves an access token to a user id.
type Authenticator interface {
	Authenticate(token string) (uuid.UUID, error)
}

type Handler struct {
	auth     Authenticator
	hub      *Hub
	bus      *commands.Bus
	logger   *WebSocketLogger
	upgrader websocket.Upgrader
}

func NewHandler(auth Authenticator, hub *Hub, bus *commands.Bus, log *logger.Logger) *Handler {
	return &Handler{
		auth:   auth,
		hub:    hub,
		bus:    bus,
		logger: NewWebSocketLogger(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Connect authenticates before upgrading; a bad token never gets a socket.
func (h *Handler) Connect(c *gin.Context) {
	userID, err := h.auth.Authenticate(extractToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade failed", userID, "", err)
		return
	}

	client := NewClient(conn, userID, h.bus, h.logger)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	ctx := context.WithValue(c.Request.Context(), logger.UserIdKey, userID.String())
	go client.writePump()
	client.readPump(ctx)
}

func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
