package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// telemetryInterval is how often pool snapshots are pushed to websocket
// subscribers.
const telemetryInterval = time.Second

var telemetryUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dashboard is served from arbitrary origins in local setups.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleTelemetryWS streams periodic per-endpoint snapshots until the client
// disconnects or the request context ends.
func (s *Server) handleTelemetryWS(c *gin.Context) {
	conn, err := telemetryUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debugf("telemetry ws upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	// Drain client frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(telemetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			rt := s.Runtime()
			payload := gin.H{
				"timestamp": time.Now().UTC(),
				"endpoints": rt.Pool.Snapshots(),
			}
			if err := conn.WriteJSON(payload); err != nil {
				return
			}
		}
	}
}
