package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cross-origin policy is handled by the CORS middleware on the
		// HTTP surface; the ws endpoint requires an authenticate event
		// before any routing happens.
		return true
	},
}

// handleChatWebSocket upgrades the request and hands the connection to the
// realtime gateway, which owns it until disconnect.
func (s *Server) handleChatWebSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		go s.Gateway.HandleConnection(conn)
	}
}
