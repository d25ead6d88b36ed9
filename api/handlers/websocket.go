package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pairpad/backend/internal/ws"
)

// WebSocketHandler exposes the realtime relay over HTTP.
type WebSocketHandler struct {
	relay *ws.Handler
}

// NewWebSocketHandler creates a WebSocketHandler for the given relay.
func NewWebSocketHandler(relay *ws.Handler) *WebSocketHandler {
	return &WebSocketHandler{relay: relay}
}

// Connect handles GET /api/ws - upgrades to a WebSocket connection. Which
// sessions the connection participates in is declared over the socket with
// join-session events, not in the URL.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if err := h.relay.HandleConnection(c.Writer, c.Request); err != nil {
		// Upgrade failures already wrote a response.
		return
	}
}

// RegisterRoutes registers the WebSocket route on a Gin router group.
func (h *WebSocketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ws", h.Connect)
}
