package web

import (
	"log"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/sweeney/droid-core/internal/status"
)

// handleWS pushes the JSON status document every push interval until the
// client goes away.
func (s *Server) handleWS(c *websocket.Conn) {
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.push)
	defer ticker.Stop()

	for {
		if err := c.WriteMessage(websocket.TextMessage, status.FormatJSON(s.tracker.Snapshot())); err != nil {
			log.Printf("web: websocket write: %v", err)
			return
		}
		select {
		case <-ticker.C:
		case <-closed:
			return
		}
	}
}
